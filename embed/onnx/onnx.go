//go:build onnx

// Package onnx embeds text with a local MiniLM-class model through ONNX
// Runtime. Build with the onnx tag and point Config at the model,
// tokenizer, and onnxruntime shared library.
package onnx

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"strings"

	ort "github.com/yalue/onnxruntime_go"
)

const maxSequenceLength = 128

// Config locates the model artifacts.
type Config struct {
	// ModelPath is the ONNX model file.
	ModelPath string

	// TokenizerPath is the HuggingFace tokenizer.json next to the model.
	TokenizerPath string

	// LibraryPath is the onnxruntime shared library. Falls back to the
	// ONNXRUNTIME_LIB environment variable.
	LibraryPath string

	// Dimensions is the embedding size (default 384, all-MiniLM-L6-v2).
	Dimensions int
}

// Embedder runs tokenization and inference for one loaded model.
type Embedder struct {
	session    *ort.DynamicAdvancedSession
	tokenizer  *wordPieceTokenizer
	dimensions int
}

// New loads the model and tokenizer.
func New(cfg Config) (*Embedder, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("ModelPath is required")
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 384
	}
	if cfg.LibraryPath == "" {
		cfg.LibraryPath = os.Getenv("ONNXRUNTIME_LIB")
	}
	if cfg.LibraryPath == "" {
		return nil, fmt.Errorf("LibraryPath is required (or set ONNXRUNTIME_LIB)")
	}

	ort.SetSharedLibraryPath(cfg.LibraryPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("initialize onnx runtime: %w", err)
	}

	tokenizer, err := loadTokenizer(cfg.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	log.Printf("[ONNX] loaded model %s (%d dims)", cfg.ModelPath, cfg.Dimensions)
	return &Embedder{
		session:    session,
		tokenizer:  tokenizer,
		dimensions: cfg.Dimensions,
	}, nil
}

// Embed tokenizes the text, runs inference, and mean-pools the hidden
// states into a unit vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	tokens := e.tokenizer.tokenize(text)

	inputIDs := make([]int64, maxSequenceLength)
	attentionMask := make([]int64, maxSequenceLength)
	tokenTypeIDs := make([]int64, maxSequenceLength)

	inputIDs[0] = int64(e.tokenizer.clsToken)
	attentionMask[0] = 1

	// Reserve room for [CLS] and [SEP].
	tokenLen := len(tokens)
	if tokenLen > maxSequenceLength-2 {
		tokenLen = maxSequenceLength - 2
	}
	for i := 0; i < tokenLen; i++ {
		inputIDs[i+1] = tokens[i]
		attentionMask[i+1] = 1
	}
	inputIDs[tokenLen+1] = int64(e.tokenizer.sepToken)
	attentionMask[tokenLen+1] = 1

	shape := ort.NewShape(1, int64(maxSequenceLength))
	inputIDsTensor, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("create input_ids tensor: %w", err)
	}
	defer inputIDsTensor.Destroy()

	attentionTensor, err := ort.NewTensor(shape, attentionMask)
	if err != nil {
		return nil, fmt.Errorf("create attention_mask tensor: %w", err)
	}
	defer attentionTensor.Destroy()

	tokenTypeTensor, err := ort.NewTensor(shape, tokenTypeIDs)
	if err != nil {
		return nil, fmt.Errorf("create token_type_ids tensor: %w", err)
	}
	defer tokenTypeTensor.Destroy()

	outputs := []ort.Value{nil}
	err = e.session.Run([]ort.Value{inputIDsTensor, attentionTensor, tokenTypeTensor}, outputs)
	if err != nil {
		return nil, fmt.Errorf("onnx inference: %w", err)
	}
	defer func() {
		for _, out := range outputs {
			if out != nil {
				out.Destroy()
			}
		}
	}()

	if len(outputs) == 0 || outputs[0] == nil {
		return nil, fmt.Errorf("no output tensors returned")
	}
	tensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output tensor type")
	}

	embedding, err := e.pool(tensor, attentionMask)
	if err != nil {
		return nil, err
	}
	return normalize(embedding), nil
}

// pool reduces the model output to one vector. Pooled models emit
// [1, dims] directly; encoder outputs [1, seq, dims] get mean pooling
// over attended positions.
func (e *Embedder) pool(tensor *ort.Tensor[float32], attentionMask []int64) ([]float32, error) {
	data := tensor.GetData()
	shape := tensor.GetShape()

	switch len(shape) {
	case 2:
		if len(data) < e.dimensions {
			return nil, fmt.Errorf("output dimension mismatch: got %d, want %d", len(data), e.dimensions)
		}
		out := make([]float32, e.dimensions)
		copy(out, data[:e.dimensions])
		return out, nil

	case 3:
		seqLen, hiddenSize := int(shape[1]), int(shape[2])
		if shape[0] != 1 {
			return nil, fmt.Errorf("expected batch size 1, got %d", shape[0])
		}
		if hiddenSize != e.dimensions {
			return nil, fmt.Errorf("hidden size mismatch: got %d, want %d", hiddenSize, e.dimensions)
		}

		out := make([]float32, e.dimensions)
		var attended float32
		for i := 0; i < seqLen; i++ {
			if attentionMask[i] == 0 {
				continue
			}
			attended++
			offset := i * hiddenSize
			for j := 0; j < hiddenSize; j++ {
				out[j] += data[offset+j]
			}
		}
		if attended == 0 {
			return nil, fmt.Errorf("no attended tokens")
		}
		for j := range out {
			out[j] /= attended
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unexpected output shape: %v", shape)
	}
}

// Dimensions returns the embedding size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// Close releases the ONNX session.
func (e *Embedder) Close() error {
	if e.session != nil {
		return e.session.Destroy()
	}
	return nil
}

func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}

// wordPieceTokenizer is a minimal BERT WordPiece tokenizer backed by the
// vocabulary in tokenizer.json.
type wordPieceTokenizer struct {
	vocab    map[string]int
	clsToken int
	sepToken int
	unkToken int
}

func loadTokenizer(path string) (*wordPieceTokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file struct {
		Model struct {
			Vocab map[string]int `json:"vocab"`
		} `json:"model"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	return &wordPieceTokenizer{
		vocab:    file.Model.Vocab,
		clsToken: 101,
		sepToken: 102,
		unkToken: 100,
	}, nil
}

func (t *wordPieceTokenizer) tokenize(text string) []int64 {
	words := strings.Fields(strings.ToLower(text))

	var tokens []int64
	for _, word := range words {
		word = strings.Trim(word, ".,!?;:\"'")
		if id, ok := t.vocab[word]; ok {
			tokens = append(tokens, int64(id))
			continue
		}
		for _, sub := range t.split(word) {
			if id, ok := t.vocab[sub]; ok {
				tokens = append(tokens, int64(id))
			} else {
				tokens = append(tokens, int64(t.unkToken))
			}
		}
	}
	return tokens
}

// split greedily matches the longest vocabulary prefix, with the ##
// continuation marker after the first piece.
func (t *wordPieceTokenizer) split(word string) []string {
	var pieces []string
	start := 0
	for start < len(word) {
		end := len(word)
		matched := false
		for end > start {
			piece := word[start:end]
			if start > 0 {
				piece = "##" + piece
			}
			if _, ok := t.vocab[piece]; ok {
				pieces = append(pieces, piece)
				start = end
				matched = true
				break
			}
			end--
		}
		if !matched {
			pieces = append(pieces, "[UNK]")
			start++
		}
	}
	return pieces
}
