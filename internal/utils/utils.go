package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ParseUintParam reads a numeric path parameter such as a user id.
func ParseUintParam(c *gin.Context, name string) (uint64, error) {
	return strconv.ParseUint(c.Param(name), 10, 64)
}

// ParseNoteID reads the :id path parameter as a note UUID and returns it in
// canonical lower-case form.
func ParseNoteID(c *gin.Context) (string, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
