// Package app provides application bootstrap and lifecycle management for
// kubeop.
//
// # Architecture Overview
//
// The package is the layer between the cobra commands and the rest of the
// code base:
//
//  1. **Configuration (`config.go`)**: runtime settings from the command line
//  2. **Bootstrap (`bootstrap.go`)**: loads config.yaml, configures logging and
//     creates the services
//  3. **Services (`services.go`)**: Kubernetes clients and the operators built
//     on them
//  4. **Run (`run.go`)**: runs the operators and the metrics endpoint until a
//     signal arrives or an operator fails
//  5. **Wait (`wait.go`)**: one-shot waits used by `kubeop wait`
//
// # Lifecycle
//
//	cfg := app.NewConfig(true, "")
//	application, err := app.NewApplication(cfg)
//	if err != nil {
//	    return err
//	}
//	return application.Run(ctx)
//
// Run returns nil on SIGINT, SIGTERM or context cancellation. An operator
// whose watch is dropped by the API server makes Run return that error; the
// remaining operators are stopped first. kubeop does not restart operators
// itself and expects a supervisor (Deployment, systemd) to do so.
//
// # Metrics
//
// When metricsAddr is set, Run serves the controller-runtime metrics
// registry, which includes the kubeop_operator_* counters, on /metrics.
package app
