// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cliio provides the terminal Display and InputCollector the
// Runner reports to and blocks on: job status rendered with lipgloss,
// feedback questions collected with survey.
package cliio

import (
	"context"
	"fmt"

	"github.com/AlecAivazis/survey/v2"

	"github.com/viamin/aidp-sub001/pkg/condition"
)

// SurveyCollector implements runner.InputCollector by asking each
// extracted question with survey.Input (choice questions render as a
// survey.Select over their extracted choices).
type SurveyCollector struct{}

// NewSurveyCollector creates a terminal InputCollector.
func NewSurveyCollector() *SurveyCollector { return &SurveyCollector{} }

// CollectFeedback asks each question in order and returns answers keyed
// "question_<n>", matching the user_input map the Runner persists.
func (c *SurveyCollector) CollectFeedback(ctx context.Context, questions []condition.Question, stepContext string) (map[string]string, error) {
	answers := make(map[string]string, len(questions))
	if stepContext != "" {
		fmt.Printf("-- %s needs your input --\n", stepContext)
	}

	for _, q := range questions {
		answer, err := c.ask(q)
		if err != nil {
			return nil, fmt.Errorf("collecting answer for question %d: %w", q.Number, err)
		}
		answers[fmt.Sprintf("question_%d", q.Number)] = answer

		select {
		case <-ctx.Done():
			return answers, ctx.Err()
		default:
		}
	}
	return answers, nil
}

func (c *SurveyCollector) ask(q condition.Question) (string, error) {
	var answer string
	var prompt survey.Prompt
	if q.QuestionType == condition.QuestionChoice && len(q.Choices) > 0 {
		prompt = &survey.Select{Message: q.Text, Options: q.Choices, Default: q.Default}
	} else {
		prompt = &survey.Input{Message: q.Text, Default: q.Default}
	}
	if err := survey.AskOne(prompt, &answer); err != nil {
		return "", err
	}
	return answer, nil
}
