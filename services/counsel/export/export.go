// Copyright (C) 2025 Praetor AI (legal@praetor.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package export renders a completed run into a shareable research
// memo. Signing is best effort: when the signing service is down the
// export still succeeds, marked unsigned.
package export

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PraetorAI/PraetorLocal/pkg/logging"
	"github.com/PraetorAI/PraetorLocal/services/counsel/datatypes"
	"github.com/PraetorAI/PraetorLocal/services/counsel/trustview"
)

// Document is one rendered export.
type Document struct {
	// Filename is a suggested filename ("recherche-<run>.md").
	Filename string `json:"filename"`

	// Markdown is the memo body.
	Markdown string `json:"markdown"`

	// JSON is the structured attachment (run payload + trust view).
	JSON json.RawMessage `json:"json"`

	// SHA256 is the hex content hash of the markdown body.
	SHA256 string `json:"sha256"`

	// Signed is true when the signing service countersigned the hash.
	Signed bool `json:"signed"`

	// Signature is the signing service's detached signature, when
	// signed.
	Signature string `json:"signature,omitempty"`
}

// jsonAttachment is the structured half of an export.
type jsonAttachment struct {
	Run       *datatypes.AgentRunResponse `json:"run"`
	TrustView trustview.TrustView         `json:"trust_view"`
	Exported  time.Time                   `json:"exported_at"`
}

// Exporter renders and signs research documents.
type Exporter struct {
	signer *Signer
	log    *logging.Logger
}

// NewExporter creates an Exporter. signer may be nil, in which case
// all exports are unsigned.
func NewExporter(signer *Signer, log *logging.Logger) *Exporter {
	if log == nil {
		log = logging.Default()
	}
	return &Exporter{signer: signer, log: log}
}

// Export renders run into a Document and attempts to sign it. A
// signing failure degrades to an unsigned document, never an error.
func (e *Exporter) Export(ctx context.Context, run *datatypes.AgentRunResponse) (*Document, error) {
	if run == nil {
		return nil, fmt.Errorf("export: no run to export")
	}

	view := trustview.DeriveRun(run)
	markdown := renderMarkdown(run, view)

	attachment, err := json.MarshalIndent(jsonAttachment{
		Run:       run,
		TrustView: view,
		Exported:  time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export: encode attachment: %w", err)
	}

	hash := sha256.Sum256([]byte(markdown))
	doc := &Document{
		Filename: fmt.Sprintf("recherche-%s.md", run.RunID),
		Markdown: markdown,
		JSON:     attachment,
		SHA256:   hex.EncodeToString(hash[:]),
	}

	if e.signer != nil {
		signature, err := e.signer.Sign(ctx, doc.SHA256, doc.Filename)
		if err != nil {
			e.log.Warn("document signing failed, exporting unsigned",
				"run_id", run.RunID, "error", err.Error())
		} else {
			doc.Signed = true
			doc.Signature = signature
		}
	}
	return doc, nil
}

// renderMarkdown produces the French research memo.
func renderMarkdown(run *datatypes.AgentRunResponse, view trustview.TrustView) string {
	var b strings.Builder

	b.WriteString("# Mémo de recherche juridique\n\n")
	fmt.Fprintf(&b, "Référence d'exécution : `%s`\n\n", run.RunID)

	if run.Data != nil {
		data := run.Data
		fmt.Fprintf(&b, "**Juridiction :** %s", data.Jurisdiction.Country)
		if data.Jurisdiction.EU {
			b.WriteString(" (UE)")
		}
		if data.Jurisdiction.OHADA {
			b.WriteString(" (OHADA)")
		}
		b.WriteString("\n\n")

		b.WriteString("## Question\n\n")
		b.WriteString(data.Issue)
		b.WriteString("\n\n## Règles applicables\n\n")
		for _, rule := range data.Rules {
			fmt.Fprintf(&b, "- %s", rule.Citation)
			if !rule.Binding {
				b.WriteString(" *(non contraignant)*")
			}
			b.WriteString("\n")
		}
		b.WriteString("\n## Application\n\n")
		b.WriteString(data.Application)
		b.WriteString("\n\n## Conclusion\n\n")
		b.WriteString(data.Conclusion)
		b.WriteString("\n\n")

		if len(data.Citations) > 0 {
			b.WriteString("## Sources\n\n")
			for _, c := range data.Citations {
				fmt.Fprintf(&b, "- %s", c.Title)
				if c.URL != "" {
					fmt.Fprintf(&b, " — %s", c.URL)
				}
				b.WriteString("\n")
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("## Niveau de risque\n\n")
	if view.Risk.Level != "" {
		fmt.Fprintf(&b, "**%s**", view.Risk.Level)
		if view.Risk.Why != "" {
			fmt.Fprintf(&b, " — %s", view.Risk.Why)
		}
		b.WriteString("\n")
		if view.Risk.HITLRequired {
			b.WriteString("\nUne revue humaine est requise avant toute utilisation.\n")
		}
	} else {
		b.WriteString("Non évalué.\n")
	}

	if view.Compliance.Status == trustview.ComplianceIssues {
		b.WriteString("\n## Points de conformité\n\n")
		for _, issue := range view.Compliance.Issues {
			fmt.Fprintf(&b, "- %s\n", issue)
		}
	}

	return b.String()
}

// Signer posts content hashes to the document signing service.
type Signer struct {
	baseURL string
	http    *http.Client
}

// NewSigner creates a Signer for the signing service at baseURL.
func NewSigner(baseURL string) *Signer {
	return &Signer{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type signRequest struct {
	SHA256   string `json:"sha256"`
	Filename string `json:"filename"`
}

type signResponse struct {
	Signature string `json:"signature"`
}

// Sign requests a detached signature over the content hash.
func (s *Signer) Sign(ctx context.Context, sha256Hex, filename string) (string, error) {
	body, err := json.Marshal(signRequest{SHA256: sha256Hex, Filename: filename})
	if err != nil {
		return "", fmt.Errorf("encode sign request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/sign", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build sign request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("signing service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("signing service status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var signed signResponse
	if err := json.NewDecoder(resp.Body).Decode(&signed); err != nil {
		return "", fmt.Errorf("decode sign response: %w", err)
	}
	if signed.Signature == "" {
		return "", fmt.Errorf("signing service returned empty signature")
	}
	return signed.Signature, nil
}
