// Package config provides configuration management for kubeop.
//
// Configuration is read from config.yaml in a single directory. The default
// directory is ~/.config/kubeop; commands accept --config-path to use
// another one. A missing file is not an error: defaults are used.
//
// # Configuration File
//
//	namespace: jobs
//	logLevel: debug
//	logFormat: json
//	metricsAddr: ":8080"
//	waitTimeout: 2m
//	operators:
//	  worker:
//	    name: kubeop-worker
//	    parentSelector: self.metadata.labels["tier"] == "batch"
//	    labels:
//	      team: batch
//
// parentSelector is a CEL predicate over self. It must compile to a label
// selector; LoadConfig rejects predicates that cannot be expressed as one.
//
// # Errors
//
// Files that cannot be read or parsed produce a ConfigurationError carrying
// the file path and suggestions. Semantic problems are reported together as
// ValidationErrors.
package config
