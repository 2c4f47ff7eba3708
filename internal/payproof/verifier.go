package payproof

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/florence-gateway/backend/internal/models"
	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
)

const (
	// MaxDateDistance: допустимое расхождение между датой в квитанции и /payments.
	MaxDateDistance = 24 * time.Hour

	ExpectedAmount   = "1000 NGN"
	ExpectedPlatform = "Flutterwave"
)

// keywordCategory is satisfied when any of its synonyms appears in the text.
type keywordCategory struct {
	Name     string
	Synonyms []string
}

var keywordCategories = []keywordCategory{
	{Name: "payment", Synonyms: []string{"payment", "paid", "transaction"}},
	{Name: "platform", Synonyms: []string{"flutterwave", "flutter", "wave"}},
	{Name: "amount", Synonyms: []string{"1000", "1,000", "ngn1000", "ngn1,000"}},
	{Name: "identifier", Synonyms: []string{"florence", "flo"}},
}

// TextExtractor turns a document into plain text.
type TextExtractor func(data []byte) (string, error)

type Verifier struct {
	extract TextExtractor
}

func NewVerifier() *Verifier {
	return &Verifier{extract: ExtractPDFText}
}

// NewVerifierWithExtractor is used by tests and by callers with their own parser.
func NewVerifierWithExtractor(extract TextExtractor) *Verifier {
	if extract == nil {
		extract = ExtractPDFText
	}
	return &Verifier{extract: extract}
}

// Verify checks a payment proof document against the time of the open
// /payments request. It never panics and never returns an error: every
// failure is reported as an invalid result with a reason.
//
// Steps:
// 1. payload must be present and sniff as a PDF
// 2. extract plain text
// 3. all keyword categories must be present
// 4. at least one date-like substring
// 5. at least one of them is a real calendar date
// 6. the latest date is the claimed payment date
// 7. claimed date within MaxDateDistance of the request
func (v *Verifier) Verify(data []byte, requestedAt time.Time) (result models.VerificationResult) {
	defer func() {
		if r := recover(); r != nil {
			result = models.Invalid(fmt.Sprintf("could not read document: %v", r))
		}
	}()

	// 1. Проверяем формат
	if len(data) == 0 {
		return models.Invalid("no document received")
	}
	if mt := mimetype.Detect(data); !mt.Is("application/pdf") {
		return models.Invalid(fmt.Sprintf("document is not a PDF (detected %s)", mt.String()))
	}

	// 2. Извлекаем текст
	text, err := v.extract(data)
	if err != nil {
		return models.Invalid(fmt.Sprintf("could not read document: %v", err))
	}

	return VerifyText(text, requestedAt)
}

// VerifyText runs steps 3–7 on already extracted text.
func VerifyText(text string, requestedAt time.Time) models.VerificationResult {
	lower := strings.ToLower(text)

	// 3. Ключевые слова
	if missing := missingCategories(lower); len(missing) > 0 {
		return models.Invalid("missing required information: " + strings.Join(missing, ", "))
	}

	// 4. Ищем даты
	candidates := FindDateCandidates(lower)
	if len(candidates) == 0 {
		return models.Invalid("no payment date found in document")
	}

	// 5–6. Парсим и берём самую позднюю
	claimed, ok := LatestDate(candidates)
	if !ok {
		return models.Invalid("no valid payment date found in document")
	}

	// 7. Окно запроса
	diff := claimed.Sub(requestedAt)
	if diff < 0 {
		diff = -diff
	}
	if diff > MaxDateDistance {
		return models.Invalid(fmt.Sprintf(
			"payment date %s is outside the request timeframe (requested %s)",
			claimed.Format("2006-01-02"), requestedAt.Format("2006-01-02"),
		))
	}

	return models.VerificationResult{
		Valid: true,
		Date:  &claimed,
		Details: &models.PaymentDetails{
			Amount:   ExpectedAmount,
			Platform: ExpectedPlatform,
		},
	}
}

func missingCategories(lower string) []string {
	var missing []string
	for _, cat := range keywordCategories {
		found := false
		for _, s := range cat.Synonyms {
			if strings.Contains(lower, s) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, cat.Name)
		}
	}
	return missing
}

// ExtractPDFText reads every page of a PDF into one string.
func ExtractPDFText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("read text: %w", err)
	}
	return buf.String(), nil
}
