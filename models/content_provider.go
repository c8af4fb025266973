package models

// ContentProvider deposits content into a Pln. Its plugin and
// parameters determine the AUIDs the daemons use for its content.
type ContentProvider struct {
	Id               int64  `json:"id"`
	Uuid             string `json:"uuid"`
	PlnId            int64  `json:"pln_id"`
	Name             string `json:"name"`
	PluginIdentifier string `json:"plugin_identifier"`
	PermissionUrl    string `json:"permission_url"`
	MaxFileSize      int64  `json:"max_file_size"`
	MaxAuSize        int64  `json:"max_au_size"`
}
