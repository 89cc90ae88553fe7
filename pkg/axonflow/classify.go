package axonflow

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/getaxonflow/axonflow-go/internal/transport"
)

// blockProbe is the subset of any agent response body that signals a policy
// decision. Probing is tolerant: a body that is not JSON simply yields the
// zero probe.
type blockProbe struct {
	Blocked     bool                  `json:"blocked"`
	BlockReason string                `json:"block_reason"`
	Policy      string                `json:"policy"`
	Message     string                `json:"message"`
	Error       string                `json:"error"`
	PolicyInfo  *PolicyEvaluationInfo `json:"policy_info"`
}

func probeBody(body []byte) blockProbe {
	var p blockProbe
	_ = json.Unmarshal(body, &p)
	return p
}

// classify maps a completed HTTP exchange to the error taxonomy. Order
// matters: credentials, then policy, then the generic status families. A
// blocked flag in the body outranks a 2xx status — a block is never success.
func classify(res *transport.Result) error {
	probe := probeBody(res.Body)

	switch {
	case res.StatusCode == http.StatusUnauthorized:
		return &AuthenticationError{Message: firstNonEmpty(probe.Message, probe.Error)}

	case res.StatusCode == http.StatusForbidden:
		return policyViolation(probe, res.StatusCode)

	case res.StatusCode >= 500,
		res.StatusCode == http.StatusRequestTimeout,
		res.StatusCode == http.StatusTooManyRequests:
		return &ServerError{StatusCode: res.StatusCode, Body: bodyMessage(res.Body, probe)}

	case res.StatusCode >= 400:
		return &ClientError{StatusCode: res.StatusCode, Body: bodyMessage(res.Body, probe)}
	}

	if probe.Blocked || probe.BlockReason != "" {
		return policyViolation(probe, res.StatusCode)
	}
	return nil
}

// classifyStatus classifies by status family only, without the body block
// probe. Pre-check and replay endpoints carry denial details as payload a
// caller is expected to inspect, so a 2xx body never becomes an error.
func classifyStatus(res *transport.Result) error {
	if res.StatusCode < 400 {
		return nil
	}
	probe := probeBody(res.Body)

	switch {
	case res.StatusCode == http.StatusUnauthorized:
		return &AuthenticationError{Message: firstNonEmpty(probe.Message, probe.Error)}

	case res.StatusCode == http.StatusForbidden:
		return policyViolation(probe, res.StatusCode)

	case res.StatusCode >= 500,
		res.StatusCode == http.StatusRequestTimeout,
		res.StatusCode == http.StatusTooManyRequests:
		return &ServerError{StatusCode: res.StatusCode, Body: bodyMessage(res.Body, probe)}
	}
	return &ClientError{StatusCode: res.StatusCode, Body: bodyMessage(res.Body, probe)}
}

func policyViolation(probe blockProbe, status int) error {
	pv := &PolicyViolationError{
		Policy:      probe.Policy,
		BlockReason: firstNonEmpty(probe.BlockReason, probe.Message, probe.Error),
		StatusCode:  status,
	}
	if probe.PolicyInfo != nil {
		pv.Policies = probe.PolicyInfo.PoliciesEvaluated
		if pv.Policy == "" && len(pv.Policies) > 0 {
			pv.Policy = pv.Policies[0]
		}
	}
	return pv
}

func bodyMessage(body []byte, probe blockProbe) string {
	if msg := firstNonEmpty(probe.Error, probe.Message); msg != "" {
		return msg
	}
	return strings.TrimSpace(string(body))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
