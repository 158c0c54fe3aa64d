// Package triage turns free-text inbound patient messages into a prioritized
// conversation queue. The classification core is deterministic keyword
// matching; an optional LLM assist fills in the specialty when the keyword
// tables come up empty, but never touches the urgency decision.
package triage

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/clinova/dentalsync/pkg/logging"
)

var triageTracer = otel.Tracer("dentalsync/triage")

// Color is the five-level urgency label attached to a conversation.
type Color string

const (
	ColorRed    Color = "red"    // rank 1: severe pain, act now
	ColorBlack  Color = "black"  // rank 2: needs an appointment soon
	ColorYellow Color = "yellow" // rank 3: moderate pain
	ColorGray   Color = "gray"   // rank 4: informational, default for new conversations
	ColorGreen  Color = "green"  // rank 5: resolved by staff
)

// Rank returns the numeric priority of a color; lower is more urgent.
func Rank(c Color) int {
	switch c {
	case ColorRed:
		return 1
	case ColorBlack:
		return 2
	case ColorYellow:
		return 3
	case ColorGray:
		return 4
	case ColorGreen:
		return 5
	default:
		return 4
	}
}

// Escalate keeps urgency monotonic non-improving: the more urgent of the two
// colors wins. Only an explicit staff resolve moves a conversation to green.
func Escalate(existing, incoming Color) Color {
	if existing == "" {
		return incoming
	}
	if Rank(incoming) < Rank(existing) {
		return incoming
	}
	return existing
}

// Specialties the keyword table can refer to.
const (
	SpecialtyEndodontics  = "Endodontics"
	SpecialtyOrthodontics = "Orthodontics"
	SpecialtyImplantology = "Implantology"
	SpecialtyCosmetic     = "Cosmetic"
	SpecialtyGeneral      = "General"
)

// Action is the recommended next step for staff.
type Action string

const (
	ActionUrgentCallback  Action = "urgent_callback"
	ActionReferSpecialist Action = "refer_specialist"
	ActionOfferBooking    Action = "offer_booking"
	ActionProvideInfo     Action = "provide_info"
)

// Result is the outcome of classifying one inbound message.
type Result struct {
	PainLevel *int
	Color     Color
	Specialty string
	Action    Action
	Response  string
}

// Classifier extracts a pain-level signal and keyword intent from patient text.
type Classifier struct {
	logger *logging.Logger
}

// NewClassifier creates a classifier.
func NewClassifier(logger *logging.Logger) *Classifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &Classifier{logger: logger}
}

var painWords = map[string]bool{
	"dolor": true, "duele": true, "duelen": true, "doliendo": true,
	"pain": true, "hurts": true, "hurting": true,
}

var schedulingKeywords = []string{
	"cita", "agendar", "reservar", "turno", "visita",
	"appointment", "book", "schedule", "ver al doctor", "ver al dentista",
}

var specialtyKeywords = []struct {
	keyword   string
	specialty string
}{
	{"nervio", SpecialtyEndodontics},
	{"dolor de muela", SpecialtyEndodontics},
	{"endodoncia", SpecialtyEndodontics},
	{"conducto", SpecialtyEndodontics},
	{"root canal", SpecialtyEndodontics},
	{"toothache", SpecialtyEndodontics},
	{"brackets", SpecialtyOrthodontics},
	{"ortodoncia", SpecialtyOrthodontics},
	{"alineador", SpecialtyOrthodontics},
	{"braces", SpecialtyOrthodontics},
	{"enderezar", SpecialtyOrthodontics},
	{"alignment", SpecialtyOrthodontics},
	{"implante", SpecialtyImplantology},
	{"falta un diente", SpecialtyImplantology},
	{"diente perdido", SpecialtyImplantology},
	{"implant", SpecialtyImplantology},
	{"missing tooth", SpecialtyImplantology},
	{"blanqueamiento", SpecialtyCosmetic},
	{"carillas", SpecialtyCosmetic},
	{"estetica", SpecialtyCosmetic},
	{"estética", SpecialtyCosmetic},
	{"whitening", SpecialtyCosmetic},
	{"veneer", SpecialtyCosmetic},
	{"limpieza", SpecialtyGeneral},
	{"revision", SpecialtyGeneral},
	{"revisión", SpecialtyGeneral},
	{"cleaning", SpecialtyGeneral},
	{"checkup", SpecialtyGeneral},
}

var tokenSplitter = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// Classify maps one message to a pain level, an urgency color and an optional
// specialty. When a specialty is detected the stored action is always "refer
// to specialist", but red-level urgency takes priority in the textual
// response; both fields are populated either way.
func (c *Classifier) Classify(ctx context.Context, message string) Result {
	_, span := triageTracer.Start(ctx, "triage.classify")
	defer span.End()

	lower := strings.ToLower(strings.TrimSpace(message))

	result := Result{Color: ColorGray, Action: ActionProvideInfo}
	if lower == "" {
		result.Response = "Gracias por escribirnos. ¿En qué podemos ayudarte?"
		return result
	}

	if level, ok := extractPainLevel(lower); ok {
		result.PainLevel = &level
		switch {
		case level >= 8:
			result.Color = ColorRed
		case level >= 5:
			result.Color = ColorYellow
		}
	}

	if result.Color != ColorRed && hasSchedulingIntent(lower) {
		if result.Color == ColorGray {
			result.Color = ColorBlack
		}
		result.Action = ActionOfferBooking
	}

	result.Specialty = detectSpecialty(lower)
	if result.Specialty != "" {
		result.Action = ActionReferSpecialist
	}

	switch {
	case result.Color == ColorRed:
		// Urgency always wins the textual response; the specialty stays
		// stored for the referral that follows.
		result.Action = ActionUrgentCallback
		result.Response = "Entendemos que tienes un dolor fuerte. Te llamamos de inmediato para atenderte hoy mismo."
	case result.Specialty != "":
		result.Response = "Por lo que nos cuentas, te derivamos con nuestro especialista en " + result.Specialty + ". Te contactamos para coordinar la cita."
	case result.Color == ColorYellow:
		result.Response = "Lamentamos la molestia. Podemos ofrecerte una cita prioritaria en los próximos días."
	case result.Color == ColorBlack:
		result.Response = "Con gusto te agendamos una cita. ¿Qué día te viene mejor?"
	default:
		result.Response = "Gracias por escribirnos. En breve te respondemos con la información solicitada."
	}

	span.SetAttributes(
		attribute.String("triage.color", string(result.Color)),
		attribute.String("triage.specialty", result.Specialty),
	)
	return result
}

// extractPainLevel looks for a 1–10 numeric token within three tokens of a
// pain word, in either order ("dolor de 9" and "9 de dolor" both match).
func extractPainLevel(lower string) (int, bool) {
	tokens := tokenSplitter.Split(lower, -1)

	var painIdx, numIdx []int
	nums := map[int]int{}
	for i, tok := range tokens {
		if tok == "" {
			continue
		}
		if painWords[tok] {
			painIdx = append(painIdx, i)
		}
		if n, err := strconv.Atoi(tok); err == nil && n >= 1 && n <= 10 {
			numIdx = append(numIdx, i)
			nums[i] = n
		}
	}

	best := 0
	found := false
	for _, p := range painIdx {
		for _, n := range numIdx {
			dist := p - n
			if dist < 0 {
				dist = -dist
			}
			if dist <= 3 && nums[n] > best {
				best = nums[n]
				found = true
			}
		}
	}
	return best, found
}

func hasSchedulingIntent(lower string) bool {
	for _, kw := range schedulingKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func detectSpecialty(lower string) string {
	for _, entry := range specialtyKeywords {
		if strings.Contains(lower, entry.keyword) {
			return entry.specialty
		}
	}
	return ""
}
