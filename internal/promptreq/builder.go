package promptreq

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"google.golang.org/genai"

	"promptsmith/internal/domain"
	"promptsmith/internal/imageenc"
)

const (
	DefaultCategory = "general"
	DefaultCount    = 5
	MinCount        = 1
	MaxCount        = 1000

	DefaultTemperature float32 = 0.8
	DefaultTopP        float32 = 0.95
)

// Mode selects how the response of a request is parsed. It is fixed when the
// request is built.
type Mode int

const (
	// ModeSchema expects JSON matching the schema sent with the request.
	ModeSchema Mode = iota
	// ModeBestEffort extracts list items from free-form text.
	ModeBestEffort
)

func (m Mode) String() string {
	switch m {
	case ModeSchema:
		return "schema"
	case ModeBestEffort:
		return "best_effort"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Input carries the user's choices for one generation attempt.
type Input struct {
	Image    imageenc.EncodedImage
	Count    int
	Category string
	Suffix   string
}

// Request is an immutable, fully built generation request.
type Request struct {
	Image       imageenc.EncodedImage
	Count       int
	Category    string
	Suffix      string
	Instruction string
	Schema      *genai.Schema
	Mode        Mode
	Temperature float32
	TopP        float32
}

// Builder turns an Input into a Request for one model surface.
type Builder struct {
	// MaxCount bounds the requested count. Zero means MaxCount.
	MaxCount int
	// Structured reports whether the target surface honors a response schema.
	Structured bool
}

// ValidateCount rejects counts outside [MinCount, max].
func (b Builder) ValidateCount(n int) error {
	limit := b.maxCount()
	if n < MinCount || n > limit {
		return domain.NewError(domain.KindValidation,
			fmt.Sprintf("Number of prompts must be between %d and %d.", MinCount, limit), nil)
	}
	return nil
}

// Build validates in and assembles the instruction text and, for structured
// surfaces, the response schema. It performs no I/O.
func (b Builder) Build(in Input) (*Request, error) {
	if err := b.ValidateCount(in.Count); err != nil {
		return nil, err
	}
	if in.Image.IsZero() || strings.TrimSpace(in.Image.MIMEType) == "" {
		return nil, domain.NewError(domain.KindValidation, "Please upload an image first.", nil)
	}
	category := NormalizeCategory(in.Category)
	suffix := strings.TrimSpace(in.Suffix)
	mode := ModeBestEffort
	if b.Structured {
		mode = ModeSchema
	}
	req := &Request{
		Image:       in.Image,
		Count:       in.Count,
		Category:    category,
		Suffix:      suffix,
		Instruction: instruction(in.Count, category, suffix, mode),
		Mode:        mode,
		Temperature: DefaultTemperature,
		TopP:        DefaultTopP,
	}
	if mode == ModeSchema {
		req.Schema = ResponseSchema(in.Count)
	}
	return req, nil
}

func (b Builder) maxCount() int {
	if b.MaxCount <= 0 || b.MaxCount > MaxCount {
		return MaxCount
	}
	return b.MaxCount
}

// NormalizeCategory trims the label and maps every spelling of the default
// category, including the empty label, to DefaultCategory.
func NormalizeCategory(category string) string {
	category = strings.TrimSpace(category)
	if IsDefaultCategory(category) {
		return DefaultCategory
	}
	return category
}

// IsDefaultCategory reports whether category imposes no stylistic constraint.
func IsDefaultCategory(category string) bool {
	category = strings.TrimSpace(category)
	if category == "" {
		return true
	}
	fold := cases.Fold()
	return fold.String(category) == fold.String(DefaultCategory)
}

// ResponseSchema describes an object holding exactly n prompt strings.
func ResponseSchema(n int) *genai.Schema {
	count := int64(n)
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"prompts": {
				Type:        genai.TypeArray,
				Description: fmt.Sprintf("An array of exactly %d long, detailed, and descriptive text-to-image prompts.", n),
				Items: &genai.Schema{
					Type:        genai.TypeString,
					Description: "A single, highly detailed text-to-image prompt.",
				},
				MinItems: &count,
				MaxItems: &count,
			},
		},
		Required: []string{"prompts"},
	}
}

func instruction(n int, category, suffix string, mode Mode) string {
	sb := &strings.Builder{}
	if IsDefaultCategory(category) {
		fmt.Fprintf(sb, "You are a highly creative prompt generation assistant. Your task is to analyze the provided image and generate exactly %d distinct, long, and highly descriptive text-to-image prompts. ", n)
		sb.WriteString("Each prompt must be a detailed paragraph, exploring different artistic styles, moods, lighting conditions, and narrative possibilities inspired by the image. ")
	} else {
		fmt.Fprintf(sb, "You are a highly creative prompt generation assistant. Your task is to analyze the provided image and generate exactly %d distinct, long, and highly descriptive text-to-image prompts in the %q style. ", n, category)
		fmt.Fprintf(sb, "Every prompt must strongly and strictly reflect the %q style; do not drift into other artistic styles. Within that style, vary the mood, lighting conditions, and narrative possibilities inspired by the image. ", category)
	}
	sb.WriteString("Focus on sensory details, emotional tone, and imaginative interpretations. Ensure the prompts are detailed and extensive.")
	if suffix != "" {
		fmt.Fprintf(sb, " Every prompt must end with this exact sentence: %q", suffix)
	}
	if mode == ModeBestEffort {
		fmt.Fprintf(sb, "\nReturn the %d prompts as a numbered list, one prompt per line (\"1. ...\"), with no headings, bullets, or other text.", n)
	}
	return sb.String()
}
