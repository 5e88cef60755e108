//go:build onnx

package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/rcliao/memory-engine/internal/config"
)

const (
	onnxSeqLen     = 128
	onnxDefaultDim = 384 // all-MiniLM-L6-v2
)

// ONNXCompiled reports whether this binary carries the onnx provider.
const ONNXCompiled = true

// ONNXEmbedder runs a sentence-transformer locally through ONNX Runtime and
// mean-pools the last hidden state over attended tokens.
type ONNXEmbedder struct {
	session   *ort.DynamicAdvancedSession
	tokenizer *wordPiece
	dims      int
}

func loadONNX(ctx context.Context, cfg config.Embedding, dl *Downloader) (Embedder, error) {
	modelPath, err := dl.Ensure(ctx, cfg.ModelURL, "model.onnx")
	if err != nil {
		return nil, fmt.Errorf("fetch model: %w", err)
	}
	tokPath, err := dl.Ensure(ctx, cfg.TokenizerURL, "tokenizer.json")
	if err != nil {
		return nil, fmt.Errorf("fetch tokenizer: %w", err)
	}

	if !ort.IsInitialized() {
		if cfg.ONNXLibrary != "" {
			ort.SetSharedLibraryPath(cfg.ONNXLibrary)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnx runtime: %w", err)
		}
	}

	tok, err := loadWordPiece(tokPath)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		nil)
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	dims := cfg.Dimensions
	if dims == 0 {
		dims = onnxDefaultDim
	}
	return &ONNXEmbedder{session: session, tokenizer: tok, dims: dims}, nil
}

func (e *ONNXEmbedder) Embed(_ context.Context, text string) (Vector, error) {
	ids := e.tokenizer.encode(text, onnxSeqLen)

	inputIDs := make([]int64, onnxSeqLen)
	mask := make([]int64, onnxSeqLen)
	typeIDs := make([]int64, onnxSeqLen)
	for i, id := range ids {
		inputIDs[i] = id
		mask[i] = 1
	}

	shape := ort.NewShape(1, onnxSeqLen)
	idsT, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return nil, err
	}
	defer idsT.Destroy()
	maskT, err := ort.NewTensor(shape, mask)
	if err != nil {
		return nil, err
	}
	defer maskT.Destroy()
	typeT, err := ort.NewTensor(shape, typeIDs)
	if err != nil {
		return nil, err
	}
	defer typeT.Destroy()

	outputs := []ort.Value{nil}
	if err := e.session.Run([]ort.Value{idsT, maskT, typeT}, outputs); err != nil {
		return nil, fmt.Errorf("onnx inference: %w", err)
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output tensor type %T", outputs[0])
	}
	data, outShape := out.GetData(), out.GetShape()

	vec := make(Vector, e.dims)
	switch len(outShape) {
	case 2:
		if len(data) < e.dims {
			return nil, fmt.Errorf("output has %d values, want %d", len(data), e.dims)
		}
		copy(vec, data[:e.dims])
	case 3:
		seq, hidden := int(outShape[1]), int(outShape[2])
		if hidden != e.dims {
			return nil, fmt.Errorf("hidden size %d, want %d", hidden, e.dims)
		}
		var attended float32
		for i := 0; i < seq; i++ {
			if mask[i] == 0 {
				continue
			}
			attended++
			row := data[i*hidden : (i+1)*hidden]
			for j, f := range row {
				vec[j] += f
			}
		}
		for j := range vec {
			vec[j] /= attended
		}
	default:
		return nil, fmt.Errorf("unexpected output shape %v", outShape)
	}
	return Normalize(vec), nil
}

func (e *ONNXEmbedder) Dims() int { return e.dims }

// Close releases the runtime session.
func (e *ONNXEmbedder) Close() error {
	return e.session.Destroy()
}

// wordPiece is a minimal BERT uncased WordPiece tokenizer over tokenizer.json.
type wordPiece struct {
	vocab         map[string]int
	cls, sep, unk int64
}

func loadWordPiece(path string) (*wordPiece, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Model struct {
			Vocab map[string]int `json:"vocab"`
		} `json:"model"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Model.Vocab) == 0 {
		return nil, fmt.Errorf("tokenizer %s has no vocab", path)
	}
	w := &wordPiece{vocab: doc.Model.Vocab, cls: 101, sep: 102, unk: 100}
	if id, ok := w.vocab["[CLS]"]; ok {
		w.cls = int64(id)
	}
	if id, ok := w.vocab["[SEP]"]; ok {
		w.sep = int64(id)
	}
	if id, ok := w.vocab["[UNK]"]; ok {
		w.unk = int64(id)
	}
	return w, nil
}

// encode returns [CLS] tokens... [SEP], truncated to maxLen ids.
func (w *wordPiece) encode(text string, maxLen int) []int64 {
	ids := []int64{w.cls}
	for _, word := range splitBasic(strings.ToLower(text)) {
		for _, piece := range w.pieces(word) {
			if len(ids) == maxLen-1 {
				return append(ids, w.sep)
			}
			ids = append(ids, piece)
		}
	}
	return append(ids, w.sep)
}

func (w *wordPiece) pieces(word string) []int64 {
	if id, ok := w.vocab[word]; ok {
		return []int64{int64(id)}
	}
	var out []int64
	runes := []rune(word)
	for start := 0; start < len(runes); {
		end := len(runes)
		matched := false
		for ; end > start; end-- {
			sub := string(runes[start:end])
			if start > 0 {
				sub = "##" + sub
			}
			if id, ok := w.vocab[sub]; ok {
				out = append(out, int64(id))
				matched = true
				break
			}
		}
		if !matched {
			return []int64{w.unk}
		}
		start = end
	}
	return out
}

// splitBasic splits on whitespace and isolates punctuation, as BERT's basic
// tokenizer does.
func splitBasic(text string) []string {
	var words []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			words = append(words, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return words
}
