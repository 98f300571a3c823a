// Package clip adapts ONNX exports of CLIP-style models to the classifier
// and scorer ports. The pipeline itself treats these as opaque oracles.
package clip

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"
)

// contextLen is the CLIP text context length; prompts are padded or
// truncated to exactly this many token ids.
const contextLen = 77

var runtimeOnce sync.Once

// InitRuntime points onnxruntime at its shared library and initializes the
// environment. Safe to call more than once; only the first call wins. An
// empty libPath falls back to the platform default location.
func InitRuntime(libPath string) error {
	var initErr error
	runtimeOnce.Do(func() {
		if libPath == "" {
			libPath = defaultRuntimePath()
		}
		ort.SetSharedLibraryPath(libPath)
		if err := ort.InitializeEnvironment(); err != nil {
			initErr = fmt.Errorf("cannot initialize ONNX Runtime: %w", err)
		}
	})
	return initErr
}

// Session holds a loaded CLIP model and its tokenizer, ready for inference.
// Sessions are not safe for concurrent use; the pipeline runs one photo at
// a time through them.
type Session struct {
	session *ort.DynamicAdvancedSession
	tk      *tokenizer.Tokenizer
}

// NewSession loads a CLIP ONNX export plus its HuggingFace tokenizer.json.
// InitRuntime must have succeeded first.
func NewSession(modelPath, tokenizerPath string) (*Session, error) {
	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{"input_ids", "pixel_values", "attention_mask"},
		[]string{"logits_per_image", "logits_per_text"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("cannot create ONNX session: %w", err)
	}

	tk, err := pretrained.FromFile(tokenizerPath)
	if err != nil {
		session.Destroy()
		return nil, fmt.Errorf("cannot load tokenizer: %w", err)
	}

	return &Session{session: session, tk: tk}, nil
}

// Destroy releases resources held by the session.
func (s *Session) Destroy() {
	if s.session != nil {
		s.session.Destroy()
		s.session = nil
	}
}

// ImageLogits runs the model on one image against the given text prompts
// and returns the raw image/text similarity logits, one per prompt.
func (s *Session) ImageLogits(imagePath string, prompts []string) ([]float32, error) {
	pixelValues, err := PreprocessImage(imagePath)
	if err != nil {
		return nil, fmt.Errorf("cannot preprocess image: %w", err)
	}

	numPrompts := int64(len(prompts))
	tokenIDs := make([]int64, 0, len(prompts)*contextLen)
	for _, prompt := range prompts {
		ids, err := s.encode(prompt)
		if err != nil {
			return nil, fmt.Errorf("cannot tokenize %q: %w", prompt, err)
		}
		tokenIDs = append(tokenIDs, ids...)
	}

	attentionMask := make([]int64, len(tokenIDs))
	for i, id := range tokenIDs {
		if id != 0 {
			attentionMask[i] = 1
		}
	}

	inputIDsTensor, err := ort.NewTensor(ort.NewShape(numPrompts, contextLen), tokenIDs)
	if err != nil {
		return nil, fmt.Errorf("cannot create input_ids tensor: %w", err)
	}
	defer inputIDsTensor.Destroy()

	pixelTensor, err := ort.NewTensor(ort.NewShape(1, 3, imageSize, imageSize), pixelValues)
	if err != nil {
		return nil, fmt.Errorf("cannot create pixel_values tensor: %w", err)
	}
	defer pixelTensor.Destroy()

	attentionTensor, err := ort.NewTensor(ort.NewShape(numPrompts, contextLen), attentionMask)
	if err != nil {
		return nil, fmt.Errorf("cannot create attention_mask tensor: %w", err)
	}
	defer attentionTensor.Destroy()

	logitsPerImage, err := ort.NewEmptyTensor[float32](ort.NewShape(1, numPrompts))
	if err != nil {
		return nil, fmt.Errorf("cannot create output tensor: %w", err)
	}
	defer logitsPerImage.Destroy()

	logitsPerText, err := ort.NewEmptyTensor[float32](ort.NewShape(numPrompts, 1))
	if err != nil {
		return nil, fmt.Errorf("cannot create output tensor: %w", err)
	}
	defer logitsPerText.Destroy()

	inputs := []ort.Value{inputIDsTensor, pixelTensor, attentionTensor}
	outputs := []ort.Value{logitsPerImage, logitsPerText}
	if err := s.session.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	logits := logitsPerImage.GetData()
	result := make([]float32, len(logits))
	copy(result, logits)
	return result, nil
}

// encode tokenizes a prompt and pads or truncates it to contextLen.
func (s *Session) encode(prompt string) ([]int64, error) {
	encoding, err := s.tk.EncodeSingle(prompt, true)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, contextLen)
	for i, id := range encoding.Ids {
		if i >= contextLen {
			break
		}
		ids[i] = int64(id)
	}
	return ids, nil
}

func softmax(logits []float32) []float32 {
	max := logits[0]
	for _, v := range logits[1:] {
		if v > max {
			max = v
		}
	}

	sum := float32(0)
	result := make([]float32, len(logits))
	for i, v := range logits {
		result[i] = float32(math.Exp(float64(v - max)))
		sum += result[i]
	}
	for i := range result {
		result[i] /= sum
	}
	return result
}

func defaultRuntimePath() string {
	switch runtime.GOOS {
	case "darwin":
		if runtime.GOARCH == "arm64" {
			return "/opt/homebrew/lib/libonnxruntime.dylib"
		}
		return "/usr/local/lib/libonnxruntime.dylib"
	case "linux":
		return "/usr/lib/libonnxruntime.so"
	case "windows":
		return "onnxruntime.dll"
	default:
		return "libonnxruntime.so"
	}
}
