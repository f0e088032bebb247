// Package api exposes the drill scheduler over HTTP as a small JSON API.
package api

import (
	"github.com/tsuji/bunkei/internal/db"
	"github.com/tsuji/bunkei/internal/persist"
	"github.com/tsuji/bunkei/internal/services"
)

type Server struct {
	Drills    services.DrillService
	DB        *db.DB
	Persister *persist.Persister
}
