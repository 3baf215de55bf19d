package extract

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrEmptyDocument はパース結果が空だった場合のエラー
	ErrEmptyDocument = errors.New("document has no extractable text")
	// ErrUnsupportedFormat は対応していない拡張子のエラー
	ErrUnsupportedFormat = errors.New("unsupported document format")
)

// Parser は1種類のドキュメント形式からテキストを抽出する
type Parser interface {
	Parse(r io.Reader) (string, error)
	// Extensions は対応する拡張子（小文字、ドット付き）を返す
	Extensions() []string
}

// Registry は拡張子からパーサーを引くレジストリ
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry は対応する全パーサーを登録したレジストリを作成する
func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	r.register(NewTextParser())
	r.register(NewPDFParser())
	r.register(NewDocxParser())
	r.register(NewHTMLParser())
	r.register(NewCSVParser())
	return r
}

func (r *Registry) register(p Parser) {
	for _, ext := range p.Extensions() {
		r.parsers[ext] = p
	}
}

// Supports は拡張子に対応するパーサーがあるかを返す
func (r *Registry) Supports(ext string) bool {
	_, ok := r.parsers[strings.ToLower(ext)]
	return ok
}

// SupportedExtensions は対応する全拡張子を返す
func (r *Registry) SupportedExtensions() []string {
	exts := make([]string, 0, len(r.parsers))
	for ext := range r.parsers {
		exts = append(exts, ext)
	}
	return exts
}

// ParseReader は拡張子に応じたパーサーでテキストを抽出する
func (r *Registry) ParseReader(ext string, reader io.Reader) (string, error) {
	parser, ok := r.parsers[strings.ToLower(ext)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	text, err := parser.Parse(reader)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyDocument
	}
	return text, nil
}

// ParseFile はファイルを開き、拡張子に応じたパーサーでテキストを抽出する
func (r *Registry) ParseFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return r.ParseReader(filepath.Ext(path), f)
}
