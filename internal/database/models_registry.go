package database

import "chirp/internal/models"

// PersistentModels lists the GORM models owned by the schema in dependency
// order. Stores.Reset clears them in reverse.
func PersistentModels() []any {
	return []any{&models.User{}, &models.Post{}, &models.Notification{}}
}
