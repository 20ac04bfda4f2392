package claims

import "context"

// TextExtractor turns raw document bytes into text. Implementations
// typically call an external OCR service.
type TextExtractor interface {
	ExtractText(ctx context.Context, document []byte, contentType string) (string, error)
}

// FieldExtractor turns extracted text into the flat field mapping the
// rule set evaluates against. Implementations typically call an LLM
// with a structured-output prompt.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, text, documentName string) (Fields, error)
}

// TextExtractorFunc adapts a func to the TextExtractor interface.
type TextExtractorFunc func(ctx context.Context, document []byte, contentType string) (string, error)

func (f TextExtractorFunc) ExtractText(ctx context.Context, document []byte, contentType string) (string, error) {
	return f(ctx, document, contentType)
}

// FieldExtractorFunc adapts a func to the FieldExtractor interface.
type FieldExtractorFunc func(ctx context.Context, text, documentName string) (Fields, error)

func (f FieldExtractorFunc) ExtractFields(ctx context.Context, text, documentName string) (Fields, error) {
	return f(ctx, text, documentName)
}
