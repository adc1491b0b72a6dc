// Package pipeline turns a visit transcript into a reviewed answer set:
// it builds the extraction prompt, calls the model, decodes the reply,
// and exposes the per-session lifecycle around those steps.
package pipeline

import "fmt"

// extractionPrompt is the instruction block sent for every analysis. It
// embeds the questionnaire's original serialized form and the transcript
// verbatim; assembly is plain string substitution so identical inputs
// always produce byte-identical prompts.
const extractionPrompt = `You are a clinical documentation analyst extracting intake answers from a visit transcript.

Questionnaire definition (JSON):
%s

Visit transcript:
%s

Instructions:
- Answer only questions that are actually addressed in the transcript. Omit every other question.
- For questions that enumerate candidate answers, pick exactly one candidate.
- Reply with a JSON array of objects of the form {"linkId": "<question linkId>", "answer": <answer>}. A single object with an "answers" key holding that array is also accepted.
- Reply with JSON only: no explanations, no markdown, no code fences.`

// systemText primes the model for extraction. It is identical across
// runs so batch submissions can cache it.
const systemText = `You are a clinical intake analyst. You read visit transcripts, match what was said against a structured questionnaire, and return strictly valid JSON with no surrounding prose.`

// BuildPrompt composes the extraction prompt from the questionnaire's
// verbatim serialized text and the transcript.
func BuildPrompt(schemaText, transcriptText string) string {
	return fmt.Sprintf(extractionPrompt, schemaText, transcriptText)
}
