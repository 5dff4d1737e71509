// Package scholar routes research requests to LLM-backed agents that call
// academic, encyclopedia and web search capabilities.
//
// A Request names one of three tasks. The Router checks the field the task
// needs, renders a fixed instruction for it and hands the instruction to the
// Runner configured for the task. The runner's text comes back verbatim in a
// Response:
//
//	research     topic -> at least five verified papers with links
//	literature   topic, count -> tabular literature review
//	keyinsights  paper URL -> methodology, models, metrics, references
//
// Missing fields and unknown tasks produce guidance text and no agent call.
//
// # Agents
//
// Agent is the built-in Runner. It keeps a compact Scratchpad and loops
// Planner → Capability → Synthesizer until the planner decides to answer,
// then the Finalizer writes the response. Every call can report a cost and
// Agent.Run returns the total in Result.Cost.
//
//	agent := scholar.New(
//	    scholar.WithModel(myLLM),
//	    scholar.WithCapability(scholar.Capability{
//	        Name:        scholar.CapabilityArxiv,
//	        Description: "Academic paper index",
//	        Provider:    search.NewArxiv(),
//	    }),
//	    scholar.WithMaxIterations(5),
//	)
//
// # Teams
//
// Teams are declarative records (TeamConfig) naming a task, capabilities and
// instructions. DefaultTeams returns the paper, literature and keyinsights
// teams; LoadTeams reads the same shape from YAML. NewTeamRouter turns a
// team list and a Toolbox into a ready Router.
//
// # Interfaces
//
// Implement LLMProvider to connect any language model:
//
//	type LLMProvider interface {
//	    Generate(ctx context.Context, systemPrompt, userPrompt string) (LLMResponse, error)
//	}
//
// Implement SearchProvider to add a capability:
//
//	type SearchProvider interface {
//	    Search(ctx context.Context, query string) ([]SearchResult, error)
//	}
package scholar
