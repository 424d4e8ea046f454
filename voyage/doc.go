// Package voyage holds the wire models and transport for the Voyage
// embedding and rerank endpoints.
//
// The Transport interface has one method per endpoint. HTTPTransport talks
// to the real service; MockTransport is a scriptable double for tests.
//
//	t, err := voyage.NewHTTPTransport(voyage.HTTPConfig{APIKey: key})
//	resp, err := t.Embed(ctx, &voyage.EmbeddingRequest{
//	    Input: []string{"hello"},
//	    Model: voyage.Voyage3Large,
//	})
//
// Non-success statuses are mapped onto the errors package: 401 becomes
// UNAUTHORIZED, 403 FORBIDDEN, anything else API_ERROR with the status and
// body attached. A request that never got a response is NETWORK_ERR and a
// body that does not decode is MALFORMED_RESPONSE.
//
// EstimateEmbeddingTokens and EstimateRerankTokens give the client-side
// token estimates the rate limiter uses before a call is sent.
package voyage
