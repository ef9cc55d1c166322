package chain

import "github.com/tmc/langchaingo/prompts"

const cypherGenerationTemplate = `Task: Generate a Cypher statement to query a graph database.
Instructions:
Use only the relationship types and properties provided in the schema.
Do not use any other relationship types or properties.
Schema:
{{.schema}}
Note: Do not include any explanations or apologies in your responses.
Do not answer questions that ask for anything other than a Cypher statement.
Do not include any text except the generated Cypher statement.

The question is:
{{.question}}`

const qaTemplate = `You are an assistant that turns query results into clear, human readable answers.
The information section contains the data you must use to construct the answer.
The information is authoritative: never doubt it or correct it with your own knowledge.
Make the answer sound like a response to the question and do not mention that it is based on the given information.
If the information is empty, say that you don't know the answer.

Information:
{{.context}}

Question: {{.question}}
Helpful Answer:`

// DefaultFunctionResponseSystem is the system message used when query
// results are delivered as a tool response.
const DefaultFunctionResponseSystem = `You are an assistant that helps to form nice and human understandable answers based on the provided information from tools.
Do not add any other information that wasn't present in the tools, and use very concise style in interpreting results!`

// DefaultCypherPrompt asks the model for a single Cypher statement.
// Inputs: schema, question.
func DefaultCypherPrompt() prompts.PromptTemplate {
	return prompts.NewPromptTemplate(cypherGenerationTemplate, []string{"schema", "question"})
}

// DefaultQAPrompt asks the model to answer from query results.
// Inputs: context, question.
func DefaultQAPrompt() prompts.PromptTemplate {
	return prompts.NewPromptTemplate(qaTemplate, []string{"context", "question"})
}
