package definition

import (
	"fmt"
	"strings"
)

// Validate applies the structural rules every loadable definition must meet.
// The first violation is returned; callers treat any error as fatal for the
// whole document.
func Validate(def *Definition) error {
	if def == nil {
		return fmt.Errorf("definition: document is nil")
	}
	if len(def.Pages) == 0 {
		return fmt.Errorf("definition: at least one page is required")
	}

	pagesByPath := make(map[string]*Page, len(def.Pages))
	for i := range def.Pages {
		page := &def.Pages[i]
		if err := validatePagePath(page.Path); err != nil {
			return err
		}
		if _, exists := pagesByPath[page.Path]; exists {
			return fmt.Errorf("definition: duplicate page path %q", page.Path)
		}
		pagesByPath[page.Path] = page
	}

	if def.StartPage == "" {
		return fmt.Errorf("definition: start page is required")
	}
	if _, ok := pagesByPath[def.StartPage]; !ok {
		return fmt.Errorf("definition: start page %q does not exist", def.StartPage)
	}

	sections := make(map[string]bool, len(def.Sections))
	for _, section := range def.Sections {
		if section.Name == "" {
			return fmt.Errorf("definition: section name is required")
		}
		if sections[section.Name] {
			return fmt.Errorf("definition: duplicate section %q", section.Name)
		}
		sections[section.Name] = true
	}

	lists := make(map[string]*List, len(def.Lists))
	for i := range def.Lists {
		list := &def.Lists[i]
		if list.Name == "" {
			return fmt.Errorf("definition: list name is required")
		}
		if _, exists := lists[list.Name]; exists {
			return fmt.Errorf("definition: duplicate list %q", list.Name)
		}
		if err := validateList(list); err != nil {
			return err
		}
		lists[list.Name] = list
	}

	conditions := make(map[string]bool, len(def.Conditions))
	for _, cond := range def.Conditions {
		if cond.Name == "" {
			return fmt.Errorf("definition: condition name is required")
		}
		if conditions[cond.Name] {
			return fmt.Errorf("definition: duplicate condition %q", cond.Name)
		}
		if len(cond.Value) == 0 {
			return fmt.Errorf("definition: condition %q has no value", cond.Name)
		}
		conditions[cond.Name] = true
	}

	for i := range def.Pages {
		if err := validatePage(&def.Pages[i], pagesByPath, sections, lists, conditions); err != nil {
			return err
		}
	}

	for _, output := range def.Outputs {
		if err := validateOutput(output, conditions); err != nil {
			return err
		}
	}

	for _, fee := range def.Fees {
		if fee.Condition != "" && !conditions[fee.Condition] {
			return fmt.Errorf("definition: fee %q references unknown condition %q", fee.Description, fee.Condition)
		}
	}

	return nil
}

func validatePagePath(path string) error {
	if path == "" {
		return fmt.Errorf("definition: page path is required")
	}
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("definition: page path %q must start with /", path)
	}
	if strings.ContainsAny(path, " ?#") {
		return fmt.Errorf("definition: page path %q is not URL safe", path)
	}
	return nil
}

func validatePage(page *Page, pages map[string]*Page, sections map[string]bool, lists map[string]*List, conditions map[string]bool) error {
	if page.Section != "" && !sections[page.Section] {
		return fmt.Errorf("definition: page %q references unknown section %q", page.Path, page.Section)
	}

	names := make(map[string]bool, len(page.Components))
	for _, comp := range page.Components {
		if err := validateComponent(page, comp, lists); err != nil {
			return err
		}
		if !comp.IsFormComponent() {
			continue
		}
		if names[comp.Name] {
			return fmt.Errorf("definition: page %q has duplicate field name %q", page.Path, comp.Name)
		}
		names[comp.Name] = true
	}

	for _, link := range page.Next {
		if _, ok := pages[link.Path]; !ok {
			return fmt.Errorf("definition: page %q links to unknown page %q", page.Path, link.Path)
		}
		if link.Condition != "" && !conditions[link.Condition] {
			return fmt.Errorf("definition: page %q links with unknown condition %q", page.Path, link.Condition)
		}
	}

	if page.RepeatField != "" && page.Section == "" {
		return fmt.Errorf("definition: repeating page %q must belong to a section", page.Path)
	}

	return nil
}

func validateComponent(page *Page, comp Component, lists map[string]*List) error {
	switch comp.Type {
	case TypeText, TypeMultilineText, TypeNumber, TypeEmail, TypeTelephone,
		TypeDate, TypeDateParts, TypeMonthYear, TypeYesNo, TypeSelect,
		TypeRadios, TypeCheckboxes, TypeAutocomplete, TypeFileUpload,
		TypeHTML, TypePara, TypeInsetText:
	default:
		return fmt.Errorf("definition: page %q has unknown component type %q", page.Path, comp.Type)
	}

	if !comp.IsFormComponent() {
		return nil
	}
	if comp.Name == "" {
		return fmt.Errorf("definition: page %q has a %s without a name", page.Path, comp.Type)
	}
	if comp.Title == "" {
		return fmt.Errorf("definition: field %q on page %q has no title", comp.Name, page.Path)
	}

	switch comp.Type {
	case TypeSelect, TypeRadios, TypeCheckboxes, TypeAutocomplete:
		if comp.List == "" {
			return fmt.Errorf("definition: field %q on page %q requires a list", comp.Name, page.Path)
		}
		if _, ok := lists[comp.List]; !ok {
			return fmt.Errorf("definition: field %q references unknown list %q", comp.Name, comp.List)
		}
	}

	return nil
}

func validateList(list *List) error {
	switch list.Type {
	case ListTypeString, ListTypeNumber, ListTypeBoolean:
	case "":
		return fmt.Errorf("definition: list %q has no value type", list.Name)
	default:
		return fmt.Errorf("definition: list %q has unknown value type %q", list.Name, list.Type)
	}

	for _, item := range list.Items {
		ok := false
		switch list.Type {
		case ListTypeString:
			_, ok = item.Value.(string)
		case ListTypeNumber:
			_, ok = item.Value.(float64)
		case ListTypeBoolean:
			_, ok = item.Value.(bool)
		}
		if !ok {
			return fmt.Errorf("definition: list %q item %q does not match value type %s", list.Name, item.Text, list.Type)
		}
	}
	return nil
}

func validateOutput(output Output, conditions map[string]bool) error {
	switch output.Type {
	case OutputEmail:
		if output.Configuration.EmailAddress == "" {
			return fmt.Errorf("definition: email output requires an email address")
		}
	case OutputWebhook:
		if output.Configuration.URL == "" {
			return fmt.Errorf("definition: webhook output requires a url")
		}
	case OutputNotify:
		cfg := output.Configuration
		if cfg.TemplateID == "" || cfg.EmailField == "" {
			return fmt.Errorf("definition: notify output requires templateId and emailField")
		}
		for _, replyTo := range cfg.EmailReplyToIDConfiguration {
			if replyTo.Condition != "" && !conditions[replyTo.Condition] {
				return fmt.Errorf("definition: notify output references unknown condition %q", replyTo.Condition)
			}
		}
	default:
		return fmt.Errorf("definition: unknown output type %q", output.Type)
	}
	return nil
}
