package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bnema/chfctl/internal/characters"
)

// signalContext is cancelled on SIGINT/SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// confirm asks a yes/no question on stdin, defaulting to no
func confirm(question string) bool {
	fmt.Print(question + " [y/N] ")
	reader := bufio.NewReader(os.Stdin)
	response, _ := reader.ReadString('\n')
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

// findInstalled resolves arg as a filename, a stem or a character name
func findInstalled(repo *characters.Repository, arg string) (*characters.Character, error) {
	c, err := repo.Get(arg)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, characters.ErrCharacterNotFound) {
		return nil, err
	}

	list, lerr := repo.List()
	if lerr != nil {
		return nil, lerr
	}
	for i := range list {
		if strings.EqualFold(strings.TrimSpace(list[i].Name), strings.TrimSpace(arg)) {
			return &list[i], nil
		}
	}
	return nil, err
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
