// Package probe implements lightweight liveness checks against upstream
// AI-provider endpoints.
//
// Each transformer family (anthropic, gemini, openai) speaks a different
// wire protocol, so the probe call differs per family. All three use the
// provider's models-list route, which is free to call and exercises both
// reachability and credential validity. Failures are classified into the
// taxonomy in package health: timeouts, transport errors, credential
// rejections, and endpoints that simply do not implement the probe route.
package probe
