package fingerprint

import "testing"

func TestIsBlank_NearWhiteUniform(t *testing.T) {
	if !IsBlank(synthFrame(200, 200, 250, nil)) {
		t.Fatalf("uniform near-white frame should be blank")
	}
	if !IsBlank(synthFrame(200, 200, 255, nil)) {
		t.Fatalf("pure white frame should be blank")
	}
}

func TestIsBlank_ContrastingSquareNotBlank(t *testing.T) {
	img := synthFrame(200, 200, 250, func(px []byte, w, h int) {
		applyRegion(px, w, h, 75, 75, 125, 125, 0)
	})
	if IsBlank(img) {
		t.Fatalf("frame with a contrasting square should not be blank")
	}
}

func TestIsBlank_DarkUniformNotBlank(t *testing.T) {
	// Low variance but dark: the conjunctive rule must reject it.
	if IsBlank(synthFrame(200, 200, 30, nil)) {
		t.Fatalf("uniform dark frame should not be blank")
	}
}
