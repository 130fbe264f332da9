package events

import (
	"context"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"kubeop/pkg/logging"
	"kubeop/pkg/strings"
)

// maxMessageLength is the longest message the API server accepts on an Event.
const maxMessageLength = 1024

// Emitter records an event about obj.
type Emitter interface {
	Emit(ctx context.Context, obj client.Object, reason EventReason, data EventData) error
}

// Generator creates core/v1 Events through a controller-runtime client.
type Generator struct {
	client    client.Client
	component string
	templates *MessageTemplateEngine
}

// NewGenerator creates a Generator reporting as component.
func NewGenerator(c client.Client, component string) *Generator {
	return &Generator{
		client:    c,
		component: component,
		templates: NewMessageTemplateEngine(),
	}
}

// Emit renders the message for reason and creates an Event whose involved
// object is obj. Name and Namespace in data default to obj's.
func (g *Generator) Emit(ctx context.Context, obj client.Object, reason EventReason, data EventData) error {
	if data.Name == "" {
		data.Name = obj.GetName()
	}
	if data.Namespace == "" {
		data.Namespace = obj.GetNamespace()
	}

	gvk, err := g.client.GroupVersionKindFor(obj)
	if err != nil {
		return fmt.Errorf("failed to get GroupVersionKind for object: %w", err)
	}

	message := strings.Truncate(strings.SingleLine(g.templates.Render(reason, data)), maxMessageLength)
	eventType := getEventType(reason)

	logging.Debug("Events", "Recording %s event on %s %s/%s: %s", eventType, gvk.Kind, obj.GetNamespace(), obj.GetName(), message)

	now := metav1.NewTime(time.Now())
	event := &corev1.Event{
		ObjectMeta: metav1.ObjectMeta{
			GenerateName: obj.GetName() + "-",
			Namespace:    obj.GetNamespace(),
		},
		InvolvedObject: corev1.ObjectReference{
			APIVersion:      gvk.GroupVersion().String(),
			Kind:            gvk.Kind,
			Name:            obj.GetName(),
			Namespace:       obj.GetNamespace(),
			UID:             obj.GetUID(),
			ResourceVersion: obj.GetResourceVersion(),
		},
		Reason:         string(reason),
		Message:        message,
		Type:           string(eventType),
		Source:         corev1.EventSource{Component: g.component},
		FirstTimestamp: now,
		LastTimestamp:  now,
		Count:          1,
	}

	if err := g.client.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to create Kubernetes Event: %w", err)
	}
	return nil
}

// SetTemplate overrides the message template for reason.
func (g *Generator) SetTemplate(reason EventReason, template string) {
	g.templates.SetTemplate(reason, template)
}
