// Package interview implements the interview conversation state machine.
package interview

import (
	"fmt"
	"strings"

	"github.com/mockmate/interviewd/internal/domain"
)

// defaultFollowUpCap is the number of probing follow-up questions asked
// before the interview moves to the feedback phase.
const defaultFollowUpCap = 2

// StageDefinition describes one node of the interview state machine: how to
// instruct the model, how long its reply may be, and where to go next.
type StageDefinition struct {
	// Instruction builds the model instruction for this stage from the job
	// title and the answers collected so far.
	Instruction func(jobTitle string, answers []string) string

	// MaxOutputTokens caps the model reply for this stage. Zero means no cap.
	MaxOutputTokens int

	// FollowUpCap bounds the self-loop of the follow-up stage. Zero for
	// stages that do not loop.
	FollowUpCap int

	// Next is the successor stage. Empty for the terminal stage.
	Next domain.Stage
}

// stageTable is the immutable stage configuration, constructed once at
// process start and shared read-only by all sessions.
var stageTable = map[domain.Stage]StageDefinition{
	domain.StageInitial: {
		Instruction: func(jobTitle string, _ []string) string {
			return fmt.Sprintf(`You are an interviewer for a job titled %q. Your goal is to conduct a mock interview. Begin by asking the user to "Tell me about yourself and why should we hire you." Keep your response concise and professional.`, jobTitle)
		},
		Next: domain.StageFirstCoreQuestion,
	},
	domain.StageFirstCoreQuestion: {
		Instruction: func(jobTitle string, _ []string) string {
			return fmt.Sprintf(`You are an interviewer for a job titled %q. Based on the previous conversation and the user's last response, start by greeting the candidate by name, then ask one relevant follow-up question. Ensure your question is typical for a job interview. Keep your response concise.`, jobTitle)
		},
		MaxOutputTokens: 200,
		Next:            domain.StageAskingFollowUps,
	},
	domain.StageAskingFollowUps: {
		Instruction: func(jobTitle string, _ []string) string {
			return fmt.Sprintf(`You are an interviewer for a job titled %q. The candidate has just responded to your last question. Your task is to ask one relevant follow-up question. Analyze the candidate's previous response to formulate a question that probes deeper into their answer or explores a related area. Ensure your question is typical for a job interview. Keep your response concise.`, jobTitle)
		},
		MaxOutputTokens: 200,
		FollowUpCap:     defaultFollowUpCap,
		Next:            domain.StagePreFeedback,
	},
	domain.StagePreFeedback: {
		Instruction: func(string, []string) string {
			return `You are a professional job interviewer. The candidate has now completed answering all interview questions. Don't ask any more follow-up questions. Your task is to acknowledge the end of the question phase and set the expectation for feedback. Briefly thank the user and inform them you will provide feedback once they confirm. Keep your response concise.`
		},
		MaxOutputTokens: 100,
		Next:            domain.StageGeneratingFeedback,
	},
	domain.StageGeneratingFeedback: {
		Instruction: func(jobTitle string, answers []string) string {
			return fmt.Sprintf(`You are a professional job interviewer and performance evaluator for a %s. The mock interview is complete. Review the user's answers to the questions. Here are the user's collected answers: %s Provide constructive feedback on their answers and overall interview performance. Keep your feedback concise and professional, keep it under 2 paragraphs.`, jobTitle, enumerateAnswers(answers))
		},
		MaxOutputTokens: 500,
		Next:            domain.StageComplete,
	},
	domain.StageComplete: {
		Instruction: func(string, []string) string {
			return `You are a professional job interviewer. The mock interview is now officially complete, and feedback has been provided. Your task is to offer a polite closing statement. Deliver a brief and friendly conclusion to the interview session. Keep your closing concise and professional and under 2 paragraphs.`
		},
		MaxOutputTokens: 50,
	},
}

// enumerateAnswers renders the collected answers as "Question {i} Answer:
// {answer}" entries joined by newline-dash separators, so the evaluation can
// reference every answer by number.
func enumerateAnswers(answers []string) string {
	entries := make([]string, 0, len(answers))
	for i, ans := range answers {
		entries = append(entries, fmt.Sprintf("Question %d Answer: %s", i+1, ans))
	}
	return strings.Join(entries, "\n- ")
}

// StageFor returns the definition for stage, if it exists.
func StageFor(stage domain.Stage) (StageDefinition, bool) {
	def, ok := stageTable[stage]
	return def, ok
}
