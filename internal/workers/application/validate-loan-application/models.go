// internal/workers/application/validate-loan-application/models.go
package validateloanapplication

// Input arrives from the origination process or another intake channel.
type Input struct {
	Application map[string]interface{} `json:"application"`
	Documents   []DocumentRef          `json:"documents"`
	TenantID    string                 `json:"tenantId"`
}

// DocumentRef describes a file already stored upstream.
type DocumentRef struct {
	Slot        string `json:"slot"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

type Output struct {
	IsValid     bool              `json:"isValid"`
	Errors      map[string]string `json:"errors"`
	FailedSteps []string          `json:"failedSteps"`
}

var inputSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"application"},
	"properties": map[string]interface{}{
		"application": map[string]interface{}{"type": "object"},
		"tenantId":    map[string]interface{}{"type": "string"},
		"documents": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"slot"},
				"properties": map[string]interface{}{
					"slot":        map[string]interface{}{"type": "string", "minLength": 1},
					"name":        map[string]interface{}{"type": "string"},
					"contentType": map[string]interface{}{"type": "string"},
					"size":        map[string]interface{}{"type": "integer", "minimum": 0},
				},
			},
		},
	},
}
