// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
//
// WAFFLE hands DBDeps to each hook by value, so the state Startup builds
// for BuildHandler and Shutdown lives behind the runtime pointer that
// ConnectDB allocates.
type DBDeps struct {
	TeamHubMongoClient   *mongo.Client
	TeamHubMongoDatabase *mongo.Database

	runtime *runtime
}
