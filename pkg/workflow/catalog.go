package workflow

// CatalogTool describes a tool the generator may wire into Tool nodes.
type CatalogTool struct {
	ID              string         `json:"id" yaml:"id" toml:"id"`
	Type            string         `json:"type" yaml:"type" toml:"type"`
	Description     string         `json:"description,omitempty" yaml:"description,omitempty" toml:"description"`
	ServerID        string         `json:"serverId,omitempty" yaml:"serverId,omitempty" toml:"server_id"`
	ServerName      string         `json:"serverName,omitempty" yaml:"serverName,omitempty" toml:"server_name"`
	ParameterSchema map[string]any `json:"parameterSchema,omitempty" yaml:"parameterSchema,omitempty" toml:"parameter_schema"`
}

// Catalog indexes tools by id.
type Catalog map[string]CatalogTool

// NewCatalog builds a catalog. Later tools replace earlier ones with the
// same id.
func NewCatalog(tools []CatalogTool) Catalog {
	c := make(Catalog, len(tools))
	for _, t := range tools {
		c[t.ID] = t
	}
	return c
}

// Lookup finds a tool by id, also accepting the "serverName:id" form used
// in generator prompts.
func (c Catalog) Lookup(id string) (CatalogTool, bool) {
	if t, ok := c[id]; ok {
		return t, true
	}
	for _, t := range c {
		if t.ServerName != "" && t.ServerName+":"+t.ID == id {
			return t, true
		}
	}
	return CatalogTool{}, false
}
