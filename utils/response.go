package utils

import "github.com/gin-gonic/gin"

// Error writes the board's flat error shape. Clients read the message from
// the "error" key and show it verbatim.
func Error(ctx *gin.Context, status int, message string) {
	ctx.JSON(status, gin.H{"error": message})
}
