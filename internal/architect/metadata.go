package architect

import (
	"strconv"

	"github.com/aether-os/engine/internal/models"
	"github.com/aether-os/engine/pkg/utils"
	"gorm.io/datatypes"
)

// MetadataKey picks the metadata id of a deployed project: the platform
// project id, else the repository id, else the deployment name.
func MetadataKey(platformID string, repoID int64, name string) string {
	switch {
	case platformID != "":
		return platformID
	case repoID != 0:
		return strconv.FormatInt(repoID, 10)
	default:
		return utils.DeploymentName(name)
	}
}

// InitialMetadata is the record stored right after a first deployment.
func InitialMetadata(projectID, name string) *models.ProjectMetadata {
	return &models.ProjectMetadata{
		ProjectID: projectID,
		Name:      name,
		Structure: datatypes.JSONMap{
			"src":    []any{"app", "components", "lib"},
			"public": []any{"assets"},
		},
		Dependencies: datatypes.JSONSlice[string]{"next", "react", "tailwindcss", "framer-motion"},
		EnvVars:      datatypes.JSONMap{"NEXT_PUBLIC_API_URL": "Pending"},
	}
}
