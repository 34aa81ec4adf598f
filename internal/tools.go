package internal

import (
	"bufio"
	"fmt"
	"io"
)

type promptValidator func(string) (bool, string)

type promptConfig struct {
	tries     int
	validator promptValidator
}

type promptOption func(*promptConfig)

func WithValidator(v promptValidator) promptOption {
	return func(cfg *promptConfig) {
		cfg.validator = v
	}
}

func WithMaxTries(i int) promptOption {
	return func(cfg *promptConfig) {
		cfg.tries = i
	}
}

// Prompt writes the prompt and reads one line, repeating until the validator
// accepts the input or the tries run out. The caller owns the scanner, so
// input buffered past the answer stays with the connection.
func Prompt(sc *bufio.Scanner, w io.Writer, prompt string, opts ...promptOption) (string, error) {
	config := &promptConfig{}
	for _, opt := range opts {
		opt(config)
	}

	tries := 0
	for {
		_, err := w.Write([]byte(prompt))
		if err != nil {
			return "", err
		}

		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		input := sc.Text()

		if config.validator != nil {
			ok, msg := config.validator(input)
			if !ok {
				if _, err := w.Write([]byte(msg)); err != nil {
					return "", err
				}

				tries++
				if config.tries > 0 && config.tries == tries {
					return "", fmt.Errorf("too many tries")
				}

				continue
			}
		}

		return input, nil
	}
}
