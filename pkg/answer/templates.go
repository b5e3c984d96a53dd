package answer

import (
	"text/template"

	"github.com/papercomputeco/medibot/pkg/triage"
	"github.com/papercomputeco/medibot/pkg/vocab"
)

// Kind selects a prompt template.
type Kind int

const (
	KindMedicalQA Kind = iota
	KindSymptomAnalysis
	KindTreatmentInfo
	KindEmergency
)

func (k Kind) String() string {
	switch k {
	case KindSymptomAnalysis:
		return "symptom_analysis"
	case KindTreatmentInfo:
		return "treatment_info"
	case KindEmergency:
		return "emergency"
	default:
		return "medical_qa"
	}
}

// Template is the system text and human prompt layout for one Kind.
type Template struct {
	System string
	Human  *template.Template
}

const qaSystem = `You are MediBot, a caring AI health assistant providing contextually aware medical information. Your communication is direct, clear and natural, as if you are a helpful expert speaking from your own knowledge.

You must NEVER reveal that you are using reference material. Do not use phrases like "According to the provided documents", "The text mentions" or anything similar. Synthesize the information and present it as your own.

If the medical information below is irrelevant to the question, ignore it, acknowledge the topic supportively and give general wellness guidance.`

const qaHuman = `{{if .History}}CONVERSATION HISTORY:
{{.History}}

IMPORTANT: Use this conversation history to provide contextually relevant responses. Reference previous topics when appropriate (e.g., "Regarding the headaches you mentioned earlier...").
{{else}}This is the beginning of our conversation.
{{end}}
CURRENT MEDICAL CONTEXT:
{{.Evidence}}
{{with .UrgencyNote}}
{{.}}
{{end}}
USER'S CURRENT QUESTION: {{.Question}}

RESPONSE GUIDELINES:
1. **Context Awareness**: Reference relevant parts of our conversation history naturally
2. **Medical Accuracy**: Use only the provided medical context for health information
3. **Natural Flow**: Make the conversation feel continuous and caring
4. **Safety First**: Encourage professional care where appropriate
5. **Human-like**: Never mention "documents", "context", or internal processes

Please provide a helpful, contextually aware response that feels like a natural continuation of our conversation.`

const emergencySystem = `EMERGENCY RESPONSE
You are MediBot. Your only goal is to get the user to seek immediate professional help.
1. Immediately and clearly advise calling emergency services or going to the nearest emergency department.
2. Keep the response short and direct.
3. Never mention "documents", "context", or internal processes.`

const emergencyHuman = `{{if .History}}CONVERSATION HISTORY:
{{.History}}
{{else}}This is the beginning of our conversation.
{{end}}
RELEVANT MEDICAL INFORMATION:
{{.Evidence}}

{{.UrgencyNote}}

EMERGENCY SITUATION: {{.Question}}
Provide immediate emergency guidance.`

var (
	qaTemplate = Template{
		System: qaSystem,
		Human:  template.Must(template.New("medical_qa").Parse(qaHuman)),
	}

	emergencyTemplate = Template{
		System: emergencySystem,
		Human:  template.Must(template.New("emergency").Parse(emergencyHuman)),
	}

	// Symptom and treatment questions share the general layout.
	templates = map[Kind]Template{
		KindMedicalQA:       qaTemplate,
		KindSymptomAnalysis: qaTemplate,
		KindTreatmentInfo:   qaTemplate,
		KindEmergency:       emergencyTemplate,
	}
)

// TemplateFor returns the template for k.
func TemplateFor(k Kind) Template {
	if t, ok := templates[k]; ok {
		return t
	}
	return qaTemplate
}

// SelectTemplate picks a Kind from the urgency assessment, then from the
// question's intent.
func SelectTemplate(question string, a triage.Assessment, v *vocab.Vocabulary) Kind {
	if a.Emergency || a.Tier == triage.TierEmergency {
		return KindEmergency
	}
	if v == nil {
		v = vocab.Default()
	}
	switch {
	case vocab.ContainsAny(question, v.Treatment):
		return KindTreatmentInfo
	case vocab.ContainsAny(question, v.Symptom):
		return KindSymptomAnalysis
	default:
		return KindMedicalQA
	}
}
