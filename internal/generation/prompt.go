package generation

import "strings"

// PromptVersion identifies the output contract requested from the assistant.
// Stored results do not record it; bump it whenever the template changes the
// shape of the generated document.
const PromptVersion = "objectives-resources/v2"

const promptPlaceholder = "{{prompt}}"

const generateRunInstructions = "Respond quickly. Focus only on generating the JSON structure."

const regenerateRunInstructions = "Respond quickly. Focus only on generating the modified JSON structure."

const gameLogicTemplate = `You are being given the input and context of the game. We are going to use your output as the JSON logic for objectives and resources of a game built in Unity. Here it is: {{prompt}}.

Generate game logic as a single JSON document that takes every consideration in the input into account. If little or no input is given, make up objectives that are logical and fun.

First, make the objectives. Each objective has an objectiveType of Score, Time or Movement, and its parameters must follow the syntax in your knowledge base. Each objective has a priority (Primary, Secondary, Tertiary) and a groupType (SequentialRequired, SequentialOptional, ParallelIndependent), which can be mixed freely. Objectives track the resources they depend on in resourceTracking.

Then, make the resources needed by the objectives. Every resource must be referenced by at least one objective's resourceTracking.

Print objectives first, then resources, inside one fenced json code block.`

const editTemplate = `Based on the previous JSON generation, please modify it according to these changes: {{prompt}}.
Return the complete modified JSON that includes all previous requirements plus these new changes.`

func renderGenerate(prompt string) string {
	return strings.Replace(gameLogicTemplate, promptPlaceholder, prompt, 1)
}

func renderEdit(instruction string) string {
	return strings.Replace(editTemplate, promptPlaceholder, instruction, 1)
}
