package alpaca

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Alpaca error numbers returned in the response envelope.
const (
	errGeneric       = 1    // operation failed
	errActionUnknown = 1001 // custom action not implemented
	errInvalidParams = 1002 // missing or unparseable parameter
	errOutOfRange    = 1025 // parameter outside its valid range
	errNotConnected  = 1031 // device session is down
	errNotSupported  = 1036 // capability this device does not have
)

// envelope is the Alpaca response wrapper. Value is always serialized, so
// error responses carry an explicit null.
type envelope struct {
	Value               any    `json:"Value"`
	ClientTransactionID int    `json:"ClientTransactionID"`
	ServerTransactionID int32  `json:"ServerTransactionID"`
	ErrorNumber         int    `json:"ErrorNumber"`
	ErrorMessage        string `json:"ErrorMessage"`
}

// nextTransactionID draws from the single counter shared by every response
// the server writes, success or error.
func (s *Server) nextTransactionID() int32 {
	return s.txCounter.Add(1)
}

// respond writes a success envelope echoing the client's transaction ID.
func (s *Server) respond(c *gin.Context, tx transaction, value any) {
	c.JSON(http.StatusOK, envelope{
		Value:               value,
		ClientTransactionID: tx.ClientTransactionID,
		ServerTransactionID: s.nextTransactionID(),
	})
}

// respondError writes an error envelope. The client transaction ID is not
// echoed on errors; it is always zero.
func (s *Server) respondError(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, envelope{
		Value:               nil,
		ClientTransactionID: 0,
		ServerTransactionID: s.nextTransactionID(),
		ErrorNumber:         code,
		ErrorMessage:        message,
	})
}
