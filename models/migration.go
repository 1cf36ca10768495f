package models

import (
	"bitbucket.org/mmdatafocus/materialsync_backend/config"
	"bitbucket.org/mmdatafocus/materialsync_backend/utils"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&ShopConnection{},
		&SyncRun{}, &SyncRunError{},
	)
	utils.ErrorPanic(err)
}
