package exercise

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// symptom is one canonical vocabulary entry. Name matches the lowercased
// indication strings stored on exercises.
type symptom struct {
	Name     string
	Keywords []string
}

// vocabulary is ordered; detected symptoms come back in this order.
var vocabulary = []symptom{
	{"back pain", []string{"back pain", "backache", "lower back", "lumbar", "dor nas costas", "dor lombar", "lombar", "coluna"}},
	{"neck pain", []string{"neck pain", "stiff neck", "cervical", "dor no pescoco", "torcicolo"}},
	{"shoulder pain", []string{"shoulder pain", "shoulders hurt", "dor no ombro", "ombros"}},
	{"knee pain", []string{"knee pain", "knees hurt", "dor no joelho", "joelhos"}},
	{"joint pain", []string{"joint pain", "arthritis", "stiff joints", "dor nas articulacoes", "artrite", "artrose"}},
	{"headache", []string{"headache", "migraine", "dor de cabeca", "enxaqueca"}},
	{"insomnia", []string{"insomnia", "cant sleep", "can t sleep", "trouble sleeping", "sleepless", "insonia", "nao consigo dormir", "dormir mal"}},
	{"anxiety", []string{"anxiety", "anxious", "panic", "worried", "ansiedade", "ansioso", "ansiosa", "panico"}},
	{"stress", []string{"stress", "stressed", "overwhelmed", "estresse", "estressado", "estressada"}},
	{"fatigue", []string{"fatigue", "tired", "exhausted", "no energy", "low energy", "cansaco", "cansado", "cansada", "exausto", "exausta", "sem energia"}},
	{"digestion", []string{"digestion", "bloating", "indigestion", "constipation", "digestao", "inchaco", "prisao de ventre", "azia"}},
	{"breathing", []string{"short of breath", "breathing", "asthma", "falta de ar", "respiracao", "asma"}},
	{"high blood pressure", []string{"blood pressure", "hypertension", "pressao alta", "hipertensao"}},
	{"sadness", []string{"sad", "depressed", "grief", "tristeza", "triste", "depressao", "luto"}},
	{"irritability", []string{"irritable", "anger", "angry", "irritado", "irritada", "raiva", "irritabilidade"}},
}

var (
	folder  = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	lowerer = cases.Lower(language.Und)
	nonWord = regexp.MustCompile(`[^a-z0-9]+`)
)

// Normalize lowercases text, strips accents and collapses everything that is
// not a letter or digit into single spaces.
func Normalize(text string) string {
	folded, _, err := transform.String(folder, lowerer.String(text))
	if err != nil {
		folded = strings.ToLower(text)
	}
	return strings.TrimSpace(nonWord.ReplaceAllString(folded, " "))
}

// DetectSymptoms maps free text onto the canonical symptom vocabulary.
// Keywords match on word boundaries so "sad" does not fire inside "crusade".
func DetectSymptoms(text string) []string {
	padded := " " + Normalize(text) + " "
	if padded == "  " {
		return nil
	}
	var found []string
	for _, s := range vocabulary {
		for _, kw := range s.Keywords {
			if strings.Contains(padded, " "+kw+" ") {
				found = append(found, s.Name)
				break
			}
		}
	}
	return found
}

// genericPatterns recognize a request for practice in general, with no
// complaint attached. They run against normalized text.
var genericPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(want|wanna|like|need|love) to (practice|learn|start)\b`),
	regexp.MustCompile(`\b(want|wanna|like|need) to (try|do) (some )?(qi ?gong|chi ?kung|tai ?chi|exercises?|a practice|an exercise)\b`),
	regexp.MustCompile(`\b(teach|show|give|send|recommend|suggest) me (a |an |some )?(new )?(exercises?|practices?|lessons?|videos?|class(es)?|routines?)\b`),
	regexp.MustCompile(`\b(any|some|a) (good )?(exercises?|practices?|lessons?|videos?|class(es)?|routines?) (for beginners|to start|for today|to begin)\b`),
	regexp.MustCompile(`\bwhere (do|should|can) i (start|begin)\b`),
	regexp.MustCompile(`\b(quero|queria|gostaria de|preciso) (praticar|aprender|comecar|fazer (um |uma |alguns |algumas )?(exercicios?|praticas?|aulas?))\b`),
	regexp.MustCompile(`\b(me )?(indica|indique|recomenda|recomende|sugere|sugira|manda|mande|passa|passe) (um|uma|algum|alguma|alguns|algumas) (exercicios?|praticas?|aulas?|videos?)\b`),
	regexp.MustCompile(`\bpor onde (comeco|comecar)\b`),
}

// IsGenericRequest reports whether text asks for a lesson, video or practice
// in general terms.
func IsGenericRequest(text string) bool {
	n := Normalize(text)
	if n == "" {
		return false
	}
	for _, re := range genericPatterns {
		if re.MatchString(n) {
			return true
		}
	}
	return false
}
