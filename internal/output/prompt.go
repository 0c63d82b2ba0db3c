package output

import (
	"os"

	"github.com/AlecAivazis/survey/v2"
	"golang.org/x/term"
)

// IsInteractive reports whether stdin is a terminal a prompt can read from.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Confirm prompts the user to confirm an action with a yes/no question.
func Confirm(prompt string) (bool, error) {
	result := false
	c := &survey.Confirm{
		Message: prompt,
	}
	err := survey.AskOne(c, &result)
	return result, err
}

// InputHiddenString prompts for a secret. The validator runs on every answer.
func InputHiddenString(prompt, help string, validator func(string) error) (string, error) {
	var result string
	i := &survey.Password{
		Message: prompt,
		Help:    help,
	}

	err := survey.AskOne(i, &result, survey.WithValidator(func(ans interface{}) error {
		return validator(ans.(string))
	}))
	return result, err
}
