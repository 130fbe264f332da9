package events

import (
	"fmt"
	"strings"
)

// MessageTemplateEngine provides dynamic message generation for events.
type MessageTemplateEngine struct {
	templates map[EventReason]string
}

// NewMessageTemplateEngine creates a new message template engine with default templates.
func NewMessageTemplateEngine() *MessageTemplateEngine {
	engine := &MessageTemplateEngine{
		templates: make(map[EventReason]string),
	}
	engine.loadDefaultTemplates()
	return engine
}

func (e *MessageTemplateEngine) loadDefaultTemplates() {
	e.templates[ReasonChildCreated] = "{{.Operator}} created {{.ChildKind}} {{.ChildName}}"
	e.templates[ReasonChildCreateFailed] = "{{.Operator}} failed to create {{.ChildKind}} {{.ChildName}}{{if .Error}}: {{.Error}}{{end}}"
	e.templates[ReasonStatusUpdated] = "{{.Operator}} updated the {{.Target}} status"
	e.templates[ReasonFeedbackFailed] = "{{.Operator}} failed to update status{{if .Error}}: {{.Error}}{{end}}"
	e.templates[ReasonReconcilePanicked] = "{{.Operator}} reconciliation panicked{{if .Error}}: {{.Error}}{{end}}"
}

// Render generates a message for the given event reason and data.
func (e *MessageTemplateEngine) Render(reason EventReason, data EventData) string {
	template, exists := e.templates[reason]
	if !exists {
		return fmt.Sprintf("Event: %s for %s/%s", string(reason), data.Namespace, data.Name)
	}

	return e.renderTemplate(template, data)
}

// SetTemplate allows customizing the message template for a specific event reason.
func (e *MessageTemplateEngine) SetTemplate(reason EventReason, template string) {
	e.templates[reason] = template
}

// GetTemplate returns the template for a specific event reason.
func (e *MessageTemplateEngine) GetTemplate(reason EventReason) (string, bool) {
	template, exists := e.templates[reason]
	return template, exists
}

// renderTemplate performs simple variable substitution with EventData.
func (e *MessageTemplateEngine) renderTemplate(template string, data EventData) string {
	result := e.renderConditional(template, "{{if .Error}}", "{{end}}", data.Error != "")

	return strings.NewReplacer(
		"{{.Name}}", data.Name,
		"{{.Namespace}}", data.Namespace,
		"{{.Operator}}", data.Operator,
		"{{.ChildKind}}", data.ChildKind,
		"{{.ChildName}}", data.ChildName,
		"{{.Target}}", data.Target,
		"{{.Error}}", data.Error,
	).Replace(result)
}

// renderConditional handles a single {{if .Field}}content{{end}} block.
func (e *MessageTemplateEngine) renderConditional(template, startMarker, endMarker string, condition bool) string {
	startIndex := strings.Index(template, startMarker)
	if startIndex == -1 {
		return template
	}

	endIndex := strings.Index(template[startIndex:], endMarker)
	if endIndex == -1 {
		return template
	}
	endIndex += startIndex

	before := template[:startIndex]
	after := template[endIndex+len(endMarker):]
	if !condition {
		return before + after
	}
	return before + template[startIndex+len(startMarker):endIndex] + after
}
