// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"os"
)

// DefaultProvider creates a provider from environment variables.
// Checks in order: OLLAMA_HOST, OPENAI_API_KEY, ANTHROPIC_API_KEY
// Falls back to mock if nothing is configured.
func DefaultProvider() (Provider, error) {
	// Check for Ollama first (local, free)
	if os.Getenv("OLLAMA_HOST") != "" || os.Getenv("OLLAMA_BASE_URL") != "" || os.Getenv("OLLAMA_MODEL") != "" {
		return NewProvider(ProviderConfig{Type: "ollama"})
	}

	// Check for OpenAI
	if os.Getenv("OPENAI_API_KEY") != "" {
		return NewProvider(ProviderConfig{Type: "openai"})
	}

	// Check for Anthropic
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		return NewProvider(ProviderConfig{Type: "anthropic"})
	}

	// Default to mock for development
	return NewProvider(ProviderConfig{Type: "mock"})
}

// ProviderFromEnv creates a provider from a specific environment variable.
// Example: LLM_PROVIDER=ollama will use Ollama.
func ProviderFromEnv(envVar string) (Provider, error) {
	providerType := os.Getenv(envVar)
	if providerType == "" {
		return DefaultProvider()
	}
	return NewProvider(ProviderConfig{Type: providerType})
}

// ImpactReportSystemPrompt frames every impact report. It is the default
// for ReportRequest.SystemPrompt.
const ImpactReportSystemPrompt = `You are a Linux kernel maintainer reviewing a change-impact analysis.
The user provides a structured context describing one C function: its callers,
callees, syscall reachability, test coverage, and computed risk level.
Write a concise markdown report covering:
- Blast radius: who breaks if this function's behavior changes
- Exposure: whether the function is reachable from userspace via syscalls
- Test safety net: which tests would catch a regression, and the gaps
- A recommendation on review rigor for patches touching this function
Ground every statement in the provided context; do not invent callers or tests.`

// GenerateImpactReport is the one-call convenience the CLI uses: hand the
// rendered impact context to provider and get the report text back.
func GenerateImpactReport(ctx context.Context, provider Provider, renderedContext string) (string, error) {
	resp, err := provider.Report(ctx, ReportRequest{Context: renderedContext})
	if err != nil {
		return "", err
	}
	return resp.Report, nil
}
