package vision

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreprocessSolidColor(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 10; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 0, B: 0, A: 255})
		}
	}

	out := Preprocess(img)
	require.Len(t, out, 3*224*224)
	const size = 224 * 224
	assert.InDelta(t, (1-0.485)/0.229, out[0], 1e-3)
	assert.InDelta(t, (0-0.456)/0.224, out[size], 1e-3)
	assert.InDelta(t, (0-0.406)/0.225, out[2*size+size-1], 1e-3)
}

func TestTopLabels(t *testing.T) {
	got := TopLabels([]float32{0.1, 3, -1, 2}, []string{"cat", "dog", "car"}, 3)
	require.Len(t, got, 3)
	assert.Equal(t, LabelScore{Label: "dog", Index: 1, Score: 3}, got[0])
	assert.Equal(t, LabelScore{Label: "", Index: 3, Score: 2}, got[1])
	assert.Equal(t, "cat", got[2].Label)

	assert.Len(t, TopLabels([]float32{1}, nil, 5), 1)
}

func TestLabelText(t *testing.T) {
	e := &Encoding{Labels: []LabelScore{{Label: "chart"}, {Label: ""}, {Label: "table"}}}
	assert.Equal(t, "chart, table", e.LabelText())
}

func TestEncodeRejectsInvalidImage(t *testing.T) {
	enc := NewImageEncoder("missing.onnx", "missing.txt", "", 3)
	_, err := enc.Encode([]byte("not an image"))
	require.Error(t, err)
}

func TestEncodeMissingModelIsUnavailable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))

	enc := NewImageEncoder(filepath.Join(t.TempDir(), "none.onnx"), filepath.Join(t.TempDir(), "none.txt"),
		filepath.Join(t.TempDir(), "libonnxruntime.so"), 3)
	_, err := enc.Encode(buf.Bytes())
	require.ErrorIs(t, err, ErrModelUnavailable)

	_, err = enc.Encode(buf.Bytes())
	require.ErrorIs(t, err, ErrModelUnavailable)
}
