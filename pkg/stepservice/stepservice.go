// Package stepservice provides the public API for embedding the step
// service and registering custom operations.
package stepservice

import (
	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/core/ports"
	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/engine"
	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/pkg/config"
	"github.com/hao-vc/reelsgen-stepservice-template-simple/internal/runtime"
)

// Service is a wired step service. See internal/runtime.Service.
type Service = runtime.Service

// Option is a functional option for configuring a Service.
type Option = runtime.Option

// Config is the service configuration.
type Config = config.Config

// LoadConfig reads configuration from files and the environment without
// validating it.
func LoadConfig(path string) (*Config, error) {
	return config.Load(config.LoadOptions{ConfigFile: path})
}

// Processor executes one operation family.
type Processor = ports.Processor

// Execution is the data handed to a Processor.
type Execution = ports.Execution

// TextOptions are the parsed common text options.
type TextOptions = engine.TextOptions

// TextFunc transforms text for a TextProcessor.
type TextFunc = engine.TextFunc

// New creates a Service. Example:
//
//	svc, err := stepservice.New(
//	    stepservice.WithConfigFile("config.yaml"),
//	    stepservice.WithProcessor(stepservice.NewTextProcessor("shout", shout)),
//	)
//	if err != nil { ... }
//	err = svc.Run(ctx)
var New = runtime.New

// NewTextProcessor builds a processor that shares the built-in text
// options and result shape.
var NewTextProcessor = engine.NewTextProcessor

var (
	// Config sources
	WithConfig     = runtime.WithConfig
	WithConfigFile = runtime.WithConfigFile
	WithVersion    = runtime.WithVersion

	// Operations
	WithProcessor = runtime.WithProcessor

	// Advanced options
	WithLogger        = runtime.WithLogger
	WithLogOutput     = runtime.WithLogOutput
	WithTraceOutput   = runtime.WithTraceOutput
	WithMetricsOutput = runtime.WithMetricsOutput
	WithWebhookClient = runtime.WithWebhookClient
	WithAlertClient   = runtime.WithAlertClient
	WithListener      = runtime.WithListener
)
