package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/goliatone/go-formrunner/pkg/component"
	"github.com/goliatone/go-formrunner/pkg/definition"
	"github.com/goliatone/go-formrunner/pkg/form"
	"github.com/goliatone/go-formrunner/pkg/page"
	"github.com/goliatone/go-formrunner/pkg/summary"
)

func main() {
	formPath := flag.String("form", "", "path to a form definition JSON file")
	flag.Parse()

	if *formPath == "" {
		fmt.Fprintln(os.Stderr, "usage: formrunner-cli -form <definition.json>")
		os.Exit(2)
	}

	if err := run(context.Background(), *formPath, &surveyDriver{}); err != nil {
		if errors.Is(err, ErrAborted) {
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run walks the form in the terminal and prints the submission payload.
func run(ctx context.Context, formPath string, driver PromptDriver) error {
	def, err := definition.ParseFile(formPath)
	if err != nil {
		return err
	}
	model, err := form.New(def)
	if err != nil {
		return err
	}

	state := map[string]any{}
	current := model.Start()
	visited := map[string]bool{}

	for current != nil && !visited[current.Def.Path] {
		visited[current.Def.Path] = true

		if current.Kind == page.KindSummary || current.Kind == page.KindStatus {
			break
		}

		if current.HasFormComponents() {
			if err := driver.Info(ctx, "\n"+current.Def.Title); err != nil {
				return err
			}
			values, err := askPage(ctx, driver, current)
			if err != nil {
				return err
			}
			iteration := 0
			if current.Kind == page.KindRepeating {
				iteration = current.NextIndex(state)
			}
			update, err := current.StateUpdate(state, values, iteration)
			if err != nil {
				return err
			}
			for key, value := range update {
				state[key] = value
			}
		}

		nextPath, ok := current.Next(model.ContextState(state))
		if !ok {
			break
		}
		next, ok := model.PageByPath(nextPath)
		if !ok {
			break
		}
		current = next
	}

	declaration := false
	if model.Definition().Declaration != "" {
		declaration, err = driver.Confirm(ctx, ConfirmConfig{
			Message: "Do you accept the declaration?",
		})
		if err != nil {
			return err
		}
	}

	payload := summary.Payload(model, state, declaration)
	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("formrunner-cli: encode payload: %w", err)
	}
	return driver.Info(ctx, string(encoded))
}

// askPage prompts for every field on the page until the answers validate.
func askPage(ctx context.Context, driver PromptDriver, ctrl *page.Controller) (map[string]any, error) {
	for {
		payload := map[string]any{}
		for _, c := range ctrl.Components.FormComponents() {
			if err := askComponent(ctx, driver, c, payload); err != nil {
				return nil, err
			}
		}

		values, errs := ctrl.Validate(payload)
		if len(errs) == 0 {
			return values, nil
		}
		for _, fieldErr := range errs {
			if err := driver.Info(ctx, "  ✗ "+fieldErr.Message); err != nil {
				return nil, err
			}
		}
	}
}

func askComponent(ctx context.Context, driver PromptDriver, c *component.Component, payload map[string]any) error {
	switch c.Type {
	case definition.TypeYesNo:
		answer, err := driver.Confirm(ctx, ConfirmConfig{Message: c.Title, Help: c.Hint})
		if err != nil {
			return err
		}
		payload[c.Name] = fmt.Sprintf("%t", answer)
		return nil

	case definition.TypeSelect, definition.TypeRadios, definition.TypeAutocomplete:
		idx, err := driver.Select(ctx, SelectConfig{
			Message: c.Title,
			Options: listTexts(c),
			Help:    c.Hint,
		})
		if err != nil {
			return err
		}
		payload[c.Name] = fmt.Sprint(c.ListValues()[idx])
		return nil

	case definition.TypeCheckboxes:
		indexes, err := driver.MultiSelect(ctx, SelectConfig{
			Message: c.Title,
			Options: listTexts(c),
			Help:    c.Hint,
		})
		if err != nil {
			return err
		}
		values := c.ListValues()
		answers := make([]any, 0, len(indexes))
		for _, idx := range indexes {
			answers = append(answers, fmt.Sprint(values[idx]))
		}
		payload[c.Name] = answers
		return nil

	default:
		// Compound fields prompt once per part key.
		for _, key := range c.FormKeys() {
			message := c.Title
			if key != c.Name {
				message = fmt.Sprintf("%s (%s)", c.Title, partLabel(key))
			}
			answer, err := driver.Input(ctx, InputConfig{Message: message, Help: c.Hint})
			if err != nil {
				return err
			}
			payload[key] = answer
		}
		return nil
	}
}

func listTexts(c *component.Component) []string {
	list := c.List()
	out := make([]string, 0, len(list.Items))
	for _, item := range list.Items {
		out = append(out, item.Text)
	}
	return out
}

func partLabel(key string) string {
	for i := len(key) - 1; i > 0; i-- {
		if key[i] == '_' && i > 0 && key[i-1] == '_' {
			return key[i+1:]
		}
	}
	return key
}
