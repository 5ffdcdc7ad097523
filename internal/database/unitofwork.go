package database

import (
	"database/sql"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const txKey = "database.tx"

var ErrNoTx = errors.New("no transaction bound to request")

type unitOfWork struct {
	tx        *gorm.DB
	committed bool
}

// UnitOfWork opens one transaction per request. Handlers reach it through Tx
// and call Commit before writing a success response; anything not committed
// when the chain returns is rolled back, panics included.
func UnitOfWork(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tx := db.WithContext(c.Request.Context()).Begin()
		if tx.Error != nil {
			log.Printf("begin transaction %s %s: %v", c.Request.Method, c.FullPath(), tx.Error)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}

		uow := &unitOfWork{tx: tx}
		c.Set(txKey, uow)

		defer func() {
			if uow.committed {
				return
			}
			if err := tx.Rollback().Error; err != nil && !errors.Is(err, sql.ErrTxDone) {
				log.Printf("transaction rollback error %s %s: %v", c.Request.Method, c.FullPath(), err)
			}
		}()

		c.Next()
	}
}

// Tx returns the request's transaction. It panics when UnitOfWork is not
// installed on the route.
func Tx(c *gin.Context) *gorm.DB {
	uow, ok := lookup(c)
	if !ok {
		panic(ErrNoTx)
	}
	return uow.tx
}

// Commit commits the request's transaction. Calling it twice is a no-op.
func Commit(c *gin.Context) error {
	uow, ok := lookup(c)
	if !ok {
		return ErrNoTx
	}
	if uow.committed {
		return nil
	}
	if err := uow.tx.Commit().Error; err != nil {
		return err
	}
	uow.committed = true
	return nil
}

func lookup(c *gin.Context) (*unitOfWork, bool) {
	v, ok := c.Get(txKey)
	if !ok {
		return nil, false
	}
	uow, ok := v.(*unitOfWork)
	return uow, ok
}
