package vision

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"sort"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"golang.org/x/image/draw"
)

// ImageNet normalization (standard for torchvision models).
var (
	imagenetMean = [3]float32{0.485, 0.456, 0.406}
	imagenetStd  = [3]float32{0.229, 0.224, 0.225}
)

const (
	width  = 224
	height = 224
)

var ErrModelUnavailable = errors.New("image model unavailable")

// LabelScore holds a class label and its logit.
type LabelScore struct {
	Label string  `json:"label"`
	Index int     `json:"index"`
	Score float32 `json:"score"`
}

// Encoding is the model's view of one image: the unit-length output vector
// and its strongest labels.
type Encoding struct {
	Vector []float32    `json:"vector"`
	Labels []LabelScore `json:"labels"`
}

// LabelText joins the label names, strongest first.
func (e *Encoding) LabelText() string {
	names := make([]string, 0, len(e.Labels))
	for _, l := range e.Labels {
		if l.Label != "" {
			names = append(names, l.Label)
		}
	}
	return strings.Join(names, ", ")
}

// ImageEncoder runs a pretrained ONNX image classifier. The runtime,
// labels and session load lazily on first use.
type ImageEncoder struct {
	mu sync.Mutex

	modelPath  string
	labelsPath string
	topK       int
	libPath    string

	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	labels  []string
	inited  bool
	initErr error
}

func NewImageEncoder(modelPath, labelsPath, onnxLibPath string, topK int) *ImageEncoder {
	if topK <= 0 {
		topK = 5
	}
	return &ImageEncoder{
		modelPath:  modelPath,
		labelsPath: labelsPath,
		topK:       topK,
		libPath:    onnxLibPath,
	}
}

// initLocked must be called with mu held. A failed init is remembered.
func (e *ImageEncoder) initLocked() error {
	if e.inited {
		return nil
	}
	if e.initErr != nil {
		return e.initErr
	}
	if err := e.load(); err != nil {
		e.initErr = fmt.Errorf("%w: %v", ErrModelUnavailable, err)
		return e.initErr
	}
	e.inited = true
	return nil
}

func (e *ImageEncoder) load() error {
	if e.libPath != "" {
		ort.SetSharedLibraryPath(e.libPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("onnx init environment: %w", err)
		}
	}

	labels, err := loadLabels(e.labelsPath)
	if err != nil {
		return fmt.Errorf("load labels: %w", err)
	}
	e.labels = labels

	inputs, outputs, err := ort.GetInputOutputInfo(e.modelPath)
	if err != nil {
		return fmt.Errorf("onnx get input/output info: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return fmt.Errorf("onnx model has no inputs or outputs")
	}

	inputTensor, err := ort.NewEmptyTensor[float32](inputs[0].Dimensions)
	if err != nil {
		return fmt.Errorf("onnx new input tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](outputs[0].Dimensions)
	if err != nil {
		inputTensor.Destroy()
		return fmt.Errorf("onnx new output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(e.modelPath,
		[]string{inputs[0].Name}, []string{outputs[0].Name},
		[]ort.Value{inputTensor}, []ort.Value{outputTensor}, nil)
	if err != nil {
		outputTensor.Destroy()
		inputTensor.Destroy()
		return fmt.Errorf("onnx new session: %w", err)
	}
	e.input = inputTensor
	e.output = outputTensor
	e.session = session
	return nil
}

func loadLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var labels []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		labels = append(labels, strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return labels, nil
}

// Encode decodes imageData, runs the model and returns its encoding.
func (e *ImageEncoder) Encode(imageData []byte) (*Encoding, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	tensor := Preprocess(img)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.initLocked(); err != nil {
		return nil, err
	}

	inData := e.input.GetData()
	if len(inData) < len(tensor) {
		return nil, fmt.Errorf("input tensor size %d < preprocessed %d", len(inData), len(tensor))
	}
	copy(inData, tensor)
	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}

	logits := append([]float32(nil), e.output.GetData()...)
	return &Encoding{
		Vector: normalize(logits),
		Labels: TopLabels(logits, e.labels, e.topK),
	}, nil
}

func (e *ImageEncoder) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		_ = e.session.Destroy()
	}
	if e.input != nil {
		_ = e.input.Destroy()
	}
	if e.output != nil {
		_ = e.output.Destroy()
	}
	e.inited = false
}

// TopLabels picks the k highest scores and maps them to label names.
func TopLabels(scores []float32, labels []string, k int) []LabelScore {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })
	if k > len(idx) {
		k = len(idx)
	}
	out := make([]LabelScore, 0, k)
	for _, i := range idx[:k] {
		label := ""
		if i < len(labels) {
			label = labels[i]
		}
		out = append(out, LabelScore{Label: label, Index: i, Score: scores[i]})
	}
	return out
}

// Preprocess resizes img to 224x224 and returns an NCHW float32 tensor with
// ImageNet normalization.
func Preprocess(img image.Image) []float32 {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)

	out := make([]float32, 3*height*width)
	const size = width * height
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			idx := y*width + x
			c := dst.RGBAAt(x, y)
			r, g, b := float32(c.R)/255.0, float32(c.G)/255.0, float32(c.B)/255.0
			out[0*size+idx] = (r - imagenetMean[0]) / imagenetStd[0]
			out[1*size+idx] = (g - imagenetMean[1]) / imagenetStd[1]
			out[2*size+idx] = (b - imagenetMean[2]) / imagenetStd[2]
		}
	}
	return out
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}
