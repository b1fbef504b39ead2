package gateway

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/example/shopfront/pkg/admin"
	"github.com/example/shopfront/pkg/apperr"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type loginForm struct {
	Username string `form:"username" binding:"required"`
	Password string `form:"password" binding:"required"`
}

type registerForm struct {
	Username string `form:"username"`
	Email    string `form:"email"`
	Password string `form:"password"`
}

type addToCartForm struct {
	ProductID uint `form:"product_id" binding:"required"`
	Quantity  int  `form:"quantity,default=1"`
}

type updateCartForm struct {
	CartItemID uint `form:"cart_item_id" binding:"required"`
	Quantity   int  `form:"quantity"`
}

type checkoutForm struct {
	Address string `form:"address"`
	Phone   string `form:"phone"`
}

type productForm struct {
	Name        string `form:"name"`
	Description string `form:"description"`
	Price       string `form:"price"`
	Stock       int    `form:"stock"`
	CategoryID  uint   `form:"category_id"`
}

// input converts the form into service input.
func (f *productForm) input() (admin.ProductInput, error) {
	in := admin.ProductInput{
		Name:        f.Name,
		Description: f.Description,
		Stock:       f.Stock,
	}
	price, err := decimal.NewFromString(strings.TrimSpace(f.Price))
	if err != nil {
		return in, apperr.Validation("price must be a number")
	}
	in.Price = price
	if f.CategoryID != 0 {
		id := f.CategoryID
		in.CategoryID = &id
	}
	return in, nil
}

type statusForm struct {
	OrderID uint   `form:"order_id" binding:"required"`
	Status  string `form:"status" binding:"required"`
}

type categoryForm struct {
	Name        string `form:"name"`
	Description string `form:"description"`
}

// bindForm binds the request form, reporting malformed input as a
// validation error.
func bindForm(c *gin.Context, form any) error {
	if err := c.ShouldBind(form); err != nil {
		return apperr.Validation("invalid form input")
	}
	return nil
}

func paramID(c *gin.Context, entity string) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.NotFound(entity)
	}
	return uint(id), nil
}

// upload returns the optional image of a product form. The caller closes it.
func upload(c *gin.Context) (*admin.Upload, func(), error) {
	fh, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) || (err == nil && fh.Filename == "") {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, func() {}, apperr.Validation("invalid image upload")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, func() {}, err
	}
	return &admin.Upload{Filename: fh.Filename, Body: f}, func() { _ = f.Close() }, nil
}
