package domain

// Models accepted by the dev endpoint.
const (
	ModelGPT4o        = "openai:gpt4o"
	ModelGPT4         = "openai:gpt4"
	ModelSkylark2_32K = "skylark2-32k"
)

// ModelGPT3 is the only model the lint endpoint accepts.
const ModelGPT3 = "openai:gpt3"

// DevModels lists the models a dev task may be submitted with.
var DevModels = []string{ModelGPT4o, ModelGPT4, ModelSkylark2_32K}

// LintModels lists the models a lint request may use.
var LintModels = []string{ModelGPT3}

// DefaultDevModel and DefaultLintModel are used when nothing is configured.
const (
	DefaultDevModel  = ModelGPT4
	DefaultLintModel = ModelGPT3
)
