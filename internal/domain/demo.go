package domain

import "encoding/json"

// DemoTools returns a small standalone catalog seed used for offline
// evaluation and tests. These tools have no owning backend, so they are
// discoverable and gateable but not executable.
func DemoTools() []Tool {
	return []Tool{
		{
			ID:              "calculator",
			Name:            "Calculator",
			Description:     Desc("Perform mathematical calculations and solve equations"),
			Tags:            []string{"math", "calculation", "arithmetic"},
			EstimatedTokens: 50,
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"expression": {"type": "string", "description": "Mathematical expression to evaluate"}
				},
				"required": ["expression"]
			}`),
		},
		{
			ID:              "web-search",
			Name:            "Web Search",
			Description:     Desc("Search the web for information and retrieve results"),
			Tags:            []string{"search", "web", "internet", "query"},
			EstimatedTokens: 100,
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"query": {"type": "string", "description": "Search query"},
					"num_results": {"type": "integer", "description": "Number of results to return", "default": 10}
				},
				"required": ["query"]
			}`),
		},
		{
			ID:              "file-reader",
			Name:            "File Reader",
			Description:     Desc("Read and parse files from the filesystem"),
			Tags:            []string{"file", "io", "read", "filesystem"},
			EstimatedTokens: 75,
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"path": {"type": "string", "description": "File path to read"},
					"encoding": {"type": "string", "description": "File encoding", "default": "utf-8"}
				},
				"required": ["path"]
			}`),
		},
		{
			ID:              "code-executor",
			Name:            "Code Executor",
			Description:     Desc("Execute code snippets in various programming languages"),
			Tags:            []string{"code", "programming", "execution", "interpreter"},
			EstimatedTokens: 150,
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"code": {"type": "string", "description": "Code to execute"},
					"language": {"type": "string", "description": "Programming language", "enum": ["python", "javascript", "bash"]}
				},
				"required": ["code", "language"]
			}`),
		},
		{
			ID:              "weather-api",
			Name:            "Weather API",
			Description:     Desc("Get current weather and forecasts for any location"),
			Tags:            []string{"weather", "api", "forecast", "temperature"},
			EstimatedTokens: 80,
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"location": {"type": "string", "description": "City name or coordinates"},
					"units": {"type": "string", "description": "Temperature units", "enum": ["celsius", "fahrenheit"], "default": "celsius"}
				},
				"required": ["location"]
			}`),
		},
	}
}

// SeedDemoTools loads the demo tools into the catalog.
func SeedDemoTools(catalog *Catalog) error {
	for _, tool := range DemoTools() {
		if err := catalog.Add(tool); err != nil {
			return err
		}
	}
	return nil
}
