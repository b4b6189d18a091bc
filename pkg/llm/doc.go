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

// Package llm is the external impact-report collaborator. It accepts the
// deterministic context string pkg/reportctx renders and returns an LLM's
// markdown report about the analyzed function. The core pipeline and
// analyzer never import this package; only the CLI wires it in, behind the
// analyze --report flag.
//
// # Supported Providers
//
//   - Ollama: local models, no API key required (default)
//   - OpenAI: GPT models and OpenAI-compatible endpoints
//   - Anthropic: Claude models
//   - Mock: for testing without real API calls
//
// # Quick Start
//
// The one-call path the CLI uses:
//
//	provider, err := llm.DefaultProvider()
//	if err != nil {
//	    return err
//	}
//	report, err := llm.GenerateImpactReport(ctx, provider, renderedContext)
//
// Or construct a provider explicitly and control the request:
//
//	provider, err := llm.NewProvider(llm.ProviderConfig{
//	    Type:   "openai",
//	    APIKey: os.Getenv("OPENAI_API_KEY"),
//	})
//	if err != nil {
//	    return err
//	}
//	resp, err := provider.Report(ctx, llm.ReportRequest{
//	    Context:   renderedContext,
//	    MaxTokens: 1024,
//	})
//	fmt.Println(resp.Report)
//
// Every request is framed by ImpactReportSystemPrompt unless
// ReportRequest.SystemPrompt overrides it; Anthropic receives the framing
// through its dedicated system field, the chat-style backends as a system
// message.
//
// # Provider Selection
//
// [DefaultProvider] picks a backend from the environment, in order:
//  1. OLLAMA_HOST, OLLAMA_BASE_URL, or OLLAMA_MODEL set - Ollama (local)
//  2. OPENAI_API_KEY set - OpenAI
//  3. ANTHROPIC_API_KEY set - Anthropic
//  4. No credentials - mock provider
//
// # Environment Variables
//
// Ollama (local, free):
//   - OLLAMA_HOST: server URL (default: http://localhost:11434)
//   - OLLAMA_MODEL: model name (required for Ollama - it has no default)
//
// OpenAI:
//   - OPENAI_API_KEY: API key (required)
//   - OPENAI_BASE_URL: API URL for compatible services
//   - OPENAI_MODEL: model name (default: gpt-4o-mini)
//
// Anthropic:
//   - ANTHROPIC_API_KEY: API key (required)
//   - ANTHROPIC_MODEL: model name (default: claude-3-5-sonnet-20241022)
//
// # Error Handling
//
// Provider errors include the backend name, HTTP status, and response body:
//
//	resp, err := provider.Report(ctx, req)
//	if err != nil {
//	    // e.g. "openai report: status 401: {"error": "invalid api key"}"
//	    return err
//	}
package llm
