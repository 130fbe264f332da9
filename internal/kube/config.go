package kube

import (
	"fmt"

	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	kubeopv1alpha1 "kubeop/pkg/apis/kubeop/v1alpha1"
)

// NewScheme returns a scheme with the core Kubernetes types, CRDs and the
// kubeop API group registered.
func NewScheme() *runtime.Scheme {
	scheme := runtime.NewScheme()
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	utilruntime.Must(apiextensionsv1.AddToScheme(scheme))
	utilruntime.Must(kubeopv1alpha1.AddToScheme(scheme))
	return scheme
}

// NewClient creates a controller-runtime client with watch support.
func NewClient(config *rest.Config, scheme *runtime.Scheme) (client.WithWatch, error) {
	c, err := client.NewWithWatch(config, client.Options{Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes client: %w", err)
	}
	return c, nil
}

// GetRestConfig returns the REST config from the kubeconfig or the
// in-cluster environment, using controller-runtime's config detection.
func GetRestConfig() (*rest.Config, error) {
	return ctrl.GetConfig()
}
