package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rulesmith/rulesmith/internal/knowledge"
	"github.com/rulesmith/rulesmith/internal/rules"
	"github.com/rulesmith/rulesmith/internal/versioning"
)

const noRulesInTableStatus = "No business rules found in the CSV file. Please check the file format and content."

// ImportOutcome reports a tabular rule import: the rules that landed
// in the store and the status shown to the user.
type ImportOutcome struct {
	Rules  []rules.Rule `json:"rules"`
	Status string       `json:"status"`
}

// ImportRules extracts structured rules from an already-parsed table,
// adds them to the store with first-version metadata, snapshots the
// store, and indexes the rule texts into the knowledge base so
// retrieval can ground on them. source names the table's origin in
// version summaries and audit entries.
func (s *Service) ImportRules(ctx context.Context, source string, header []string, rows [][]string) (ImportOutcome, error) {
	extracted, err := s.extractor.ExtractFromTable(ctx, header, rows)
	if errors.Is(err, rules.ErrEmptyTable) {
		return ImportOutcome{Status: noRulesInTableStatus}, nil
	}
	if err != nil {
		return ImportOutcome{}, fmt.Errorf("extracting rules from %s: %w", source, err)
	}
	if len(extracted) == 0 {
		return ImportOutcome{Status: noRulesInTableStatus}, nil
	}

	added := s.storeImported(extracted, source)
	if len(added) == 0 {
		return ImportOutcome{Status: "No new rules imported; all rule IDs already exist."}, nil
	}

	if saved, msg := s.persist.SaveRules(s.store, "Rules extracted from CSV file: "+source); !saved {
		return ImportOutcome{
			Rules:  added,
			Status: "Error saving extracted rules: " + msg,
		}, nil
	}

	build, err := s.indexRules(ctx, added)
	if err != nil || !build.OK {
		detail := build.Status
		if err != nil {
			detail = err.Error()
		}
		return ImportOutcome{
			Rules:  added,
			Status: "Rules extracted but couldn't be added to knowledge base: " + detail,
		}, nil
	}

	status := fmt.Sprintf(
		"Successfully extracted %d business rule(s) from CSV file and added to knowledge base.\nLast updated: %s\nRules saved to persistent storage\nKnowledge base now contains %d chunks.",
		len(added), time.Now().Format("2006-01-02 15:04:05"), build.Chunks)
	return ImportOutcome{Rules: added, Status: status}, nil
}

// storeImported adds each extracted rule to the store and stamps
// first-version metadata carrying the import provenance. Rules whose
// ID is already taken are skipped.
func (s *Service) storeImported(extracted []rules.Rule, source string) []rules.Rule {
	added := make([]rules.Rule, 0, len(extracted))
	for _, rule := range extracted {
		stored, err := s.store.Add(rule)
		if err != nil {
			s.logger.Warn("skipping imported rule",
				slog.String("rule_id", rule.RuleID),
				slog.String("error", err.Error()))
			continue
		}

		versioned := s.versions.CreateVersioned(stored, versioning.Change{
			Summary: "Rule imported from " + source,
		})
		if err := s.store.Replace(versioned); err == nil {
			stored = versioned
		}
		added = append(added, stored)
	}
	return added
}

// indexRules renders the imported rules to a temporary document and
// runs it through the knowledge-base build.
func (s *Service) indexRules(ctx context.Context, imported []rules.Rule) (knowledge.BuildResult, error) {
	tmp, err := os.CreateTemp("", "imported_rules_*.txt")
	if err != nil {
		return knowledge.BuildResult{}, fmt.Errorf("creating rules document: %w", err)
	}
	defer os.Remove(tmp.Name())

	texts := make([]string, 0, len(imported))
	for _, rule := range imported {
		texts = append(texts, ruleText(rule))
	}
	if _, err := tmp.WriteString(strings.Join(texts, "\n")); err != nil {
		tmp.Close()
		return knowledge.BuildResult{}, fmt.Errorf("writing rules document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return knowledge.BuildResult{}, fmt.Errorf("writing rules document: %w", err)
	}

	return s.BuildKnowledgeBase(ctx, []string{tmp.Name()}), nil
}

// ruleText renders one rule as the retrieval document block indexed
// alongside uploaded documents.
func ruleText(rule rules.Rule) string {
	return fmt.Sprintf(
		"\nRule: %s\nCategory: %s\nDescription: %s\nSummary: %s\nPriority: %s\nActive: %t\n",
		valueOr(rule.Name, "Unknown"),
		valueOr(rule.Category, "Unknown"),
		valueOr(rule.Description, "No description"),
		valueOr(rule.Summary, "No summary"),
		valueOr(rule.Priority, rules.PriorityMedium),
		rule.Active)
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
