package mngmt

import (
	"bytes"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"accessgate/internal/apperr"
	"accessgate/internal/config"
	"accessgate/internal/database"
	"accessgate/internal/platform"
	"accessgate/internal/platform/user"
)

func userID(c *fiber.Ctx) (uuid.UUID, error) {
	uid, err := uuid.Parse(c.Params("user_id"))
	if err != nil {
		return uuid.Nil, apperr.Validation("Invalid user ID")
	}
	return uid, nil
}

func CreateUser(c *fiber.Ctx) error {
	p := c.Locals("platform").(*platform.Platform)

	var input user.CreateUserInput
	if err := c.BodyParser(&input); err != nil {
		return apperr.Validation("Invalid input")
	}

	err := config.Validate.Struct(input)
	if err != nil {
		return apperr.Validation(err.Error())
	}

	u, created, err := p.Users.Create(c.UserContext(), input)
	if err != nil {
		return err
	}

	if !created {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "User already exists",
			"user":    u,
		})
	}

	return c.Status(fiber.StatusCreated).JSON(u)
}

func GetAllUsers(c *fiber.Ctx) error {
	p := c.Locals("platform").(*platform.Platform)

	users, err := p.Users.List(c.UserContext())
	if err != nil {
		return err
	}

	return c.JSON(users)
}

func GetUser(c *fiber.Ctx) error {
	p := c.Locals("platform").(*platform.Platform)

	uid, err := userID(c)
	if err != nil {
		return err
	}

	u, err := p.Users.Get(c.UserContext(), uid)
	if err != nil {
		return err
	}

	return c.JSON(u)
}

func UpdateUser(c *fiber.Ctx) error {
	p := c.Locals("platform").(*platform.Platform)

	uid, err := userID(c)
	if err != nil {
		return err
	}

	var input user.UpdateUserInput
	if err := c.BodyParser(&input); err != nil {
		return apperr.Validation("Invalid input")
	}

	err = config.Validate.Struct(input)
	if err != nil {
		return apperr.Validation(err.Error())
	}

	u, err := p.Users.Update(c.UserContext(), uid, input)
	if err != nil {
		return err
	}

	return c.JSON(u)
}

type PermissionInput struct {
	Website      string     `json:"website" validate:"required,max=253"`
	HasAccess    *bool      `json:"has_access" validate:"required"`
	LastAccessed *time.Time `json:"last_accessed"`
	ApprovedBy   *uuid.UUID `json:"approved_by"`
}

// SetUserPermissions replaces the whole permission set of a user with the
// JSON array in the body.
func SetUserPermissions(c *fiber.Ctx) error {
	p := c.Locals("platform").(*platform.Platform)
	admin := c.Locals("user").(database.User)

	uid, err := userID(c)
	if err != nil {
		return err
	}

	if !bytes.HasPrefix(bytes.TrimSpace(c.Body()), []byte("[")) {
		return apperr.Validation("Permissions must be a JSON array")
	}

	var input []PermissionInput
	if err := c.BodyParser(&input); err != nil {
		return apperr.Validation("Permissions must be a JSON array")
	}

	permissions := make([]database.WebsitePermission, 0, len(input))
	for _, in := range input {
		if err := config.Validate.Struct(in); err != nil {
			return apperr.Validation(err.Error())
		}
		permissions = append(permissions, database.WebsitePermission{
			Website:      in.Website,
			HasAccess:    *in.HasAccess,
			LastAccessed: in.LastAccessed,
			ApprovedBy:   in.ApprovedBy,
		})
	}

	if err := p.Permissions.Replace(c.UserContext(), uid, admin.ID, permissions); err != nil {
		return err
	}

	u, err := p.Users.Get(c.UserContext(), uid)
	if err != nil {
		return err
	}

	return c.JSON(u)
}

func GrantPermission(c *fiber.Ctx) error {
	p := c.Locals("platform").(*platform.Platform)
	admin := c.Locals("user").(database.User)

	uid, err := userID(c)
	if err != nil {
		return err
	}

	if err := p.Permissions.Grant(c.UserContext(), uid, c.Params("website"), admin.ID); err != nil {
		return err
	}

	u, err := p.Users.Get(c.UserContext(), uid)
	if err != nil {
		return err
	}

	return c.JSON(u)
}

func RevokePermission(c *fiber.Ctx) error {
	p := c.Locals("platform").(*platform.Platform)

	uid, err := userID(c)
	if err != nil {
		return err
	}

	if err := p.Permissions.Revoke(c.UserContext(), uid, c.Params("website")); err != nil {
		return err
	}

	u, err := p.Users.Get(c.UserContext(), uid)
	if err != nil {
		return err
	}

	return c.JSON(u)
}

func BulkSetActive(c *fiber.Ctx) error {
	p := c.Locals("platform").(*platform.Platform)

	type BulkActiveInput struct {
		UserIDs  []string `json:"user_ids" validate:"required"`
		IsActive *bool    `json:"is_active" validate:"required"`
	}

	var input BulkActiveInput
	if err := c.BodyParser(&input); err != nil {
		return apperr.Validation("Invalid input")
	}

	err := config.Validate.Struct(input)
	if err != nil {
		return apperr.Validation(err.Error())
	}

	modified, err := p.Users.BulkSetActive(c.UserContext(), input.UserIDs, *input.IsActive)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"modified": modified})
}
