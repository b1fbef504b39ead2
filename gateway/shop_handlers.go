package gateway

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/example/shopfront/pkg/apperr"
	"github.com/example/shopfront/pkg/auth"
	"github.com/example/shopfront/pkg/catalog"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (g *Gateway) index(c *gin.Context) {
	products, err := g.svc.Catalog.ListAvailable(c.Request.Context(), catalog.HomeLimit)
	if err != nil {
		g.fail(c, err, "/")
		return
	}
	g.render(c, http.StatusOK, "index.html", gin.H{"Products": products})
}

func (g *Gateway) products(c *gin.Context) {
	ctx := c.Request.Context()
	term := strings.TrimSpace(c.Query("search"))
	var categoryID uint
	if v, err := strconv.ParseUint(c.Query("category"), 10, 64); err == nil {
		categoryID = uint(v)
	}

	products, err := g.svc.Catalog.Search(ctx, term, categoryID)
	if err != nil {
		g.fail(c, err, "/")
		return
	}
	categories, err := g.svc.Catalog.Categories(ctx)
	if err != nil {
		g.fail(c, err, "/")
		return
	}
	g.render(c, http.StatusOK, "products.html", gin.H{
		"Title":      "Products",
		"Products":   products,
		"Categories": categories,
		"Search":     term,
		"CategoryID": categoryID,
	})
}

func (g *Gateway) productDetail(c *gin.Context) {
	id, err := paramID(c, "product")
	if err != nil {
		g.fail(c, err, "/products")
		return
	}
	product, err := g.svc.Catalog.Get(c.Request.Context(), id)
	if err != nil {
		g.fail(c, err, "/products")
		return
	}
	g.render(c, http.StatusOK, "product_detail.html", gin.H{"Title": product.Name, "Product": product})
}

func (g *Gateway) loginPage(c *gin.Context) {
	if currentSession(c).data.LoggedIn() {
		g.redirect(c, "/")
		return
	}
	g.render(c, http.StatusOK, "login.html", gin.H{"Title": "Log in"})
}

func (g *Gateway) login(c *gin.Context) {
	var form loginForm
	if err := bindForm(c, &form); err != nil {
		g.flash(c, "error", "Username and password are required")
		g.redirect(c, "/login")
		return
	}

	user, err := g.svc.Auth.Login(c.Request.Context(), form.Username, form.Password)
	if err != nil {
		if auth.IsBadCredentials(err) {
			g.flash(c, "error", "Invalid username or password")
			g.render(c, http.StatusOK, "login.html", gin.H{"Title": "Log in", "Username": form.Username})
			return
		}
		g.fail(c, err, "/login")
		return
	}

	g.startSession(c, user)
	g.logger.Info("User logged in", zap.Uint("user_id", user.ID), zap.String("username", user.Username))
	g.flash(c, "success", "Login successful")
	g.redirect(c, "/")
}

func (g *Gateway) registerPage(c *gin.Context) {
	g.render(c, http.StatusOK, "register.html", gin.H{"Title": "Register"})
}

func (g *Gateway) register(c *gin.Context) {
	var form registerForm
	if err := bindForm(c, &form); err != nil {
		g.fail(c, err, "/register")
		return
	}

	user, err := g.svc.Auth.Register(c.Request.Context(), form.Username, form.Email, form.Password)
	if err != nil {
		switch apperr.KindOf(err) {
		case apperr.KindValidation, apperr.KindConflict:
			g.flash(c, "error", capitalize(apperr.Message(err, "Registration failed")))
			g.render(c, http.StatusOK, "register.html", gin.H{
				"Title":    "Register",
				"Username": form.Username,
				"Email":    form.Email,
			})
		default:
			g.fail(c, err, "/register")
		}
		return
	}

	g.logger.Info("User registered", zap.Uint("user_id", user.ID), zap.String("username", user.Username))
	g.flash(c, "success", "Registration successful, please log in")
	g.redirect(c, "/login")
}

func (g *Gateway) logout(c *gin.Context) {
	g.endSession(c)
	g.flash(c, "info", "Logged out")
	g.redirect(c, "/")
}

func (g *Gateway) cart(c *gin.Context) {
	view, err := g.svc.Cart.ListItems(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		g.fail(c, err, "/")
		return
	}
	g.render(c, http.StatusOK, "cart.html", gin.H{"Title": "Cart", "Cart": view})
}

func (g *Gateway) addToCart(c *gin.Context) {
	var form addToCartForm
	if err := bindForm(c, &form); err != nil {
		g.fail(c, err, "/products")
		return
	}

	back := "/product/" + strconv.FormatUint(uint64(form.ProductID), 10)
	err := g.svc.Cart.AddItem(c.Request.Context(), currentUser(c).ID, form.ProductID, form.Quantity)
	switch {
	case err == nil:
		g.flash(c, "success", "Product added to cart")
		g.redirect(c, "/cart")
	case apperr.Is(err, apperr.CodeOutOfStock):
		g.flash(c, "error", "Not enough stock")
		g.redirect(c, back)
	case apperr.KindOf(err) == apperr.KindNotFound:
		g.fail(c, err, "/products")
	default:
		g.fail(c, err, back)
	}
}

func (g *Gateway) updateCart(c *gin.Context) {
	var form updateCartForm
	if err := bindForm(c, &form); err != nil {
		g.fail(c, err, "/cart")
		return
	}
	if err := g.svc.Cart.UpdateItem(c.Request.Context(), currentUser(c).ID, form.CartItemID, form.Quantity); err != nil {
		g.fail(c, err, "/cart")
		return
	}
	g.flash(c, "success", "Cart updated")
	g.redirect(c, "/cart")
}

func (g *Gateway) checkoutPage(c *gin.Context) {
	summary, err := g.svc.Checkout.Summary(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		g.fail(c, err, "/cart")
		return
	}
	if len(summary.Lines) == 0 {
		g.flash(c, "error", "Your cart is empty")
		g.redirect(c, "/cart")
		return
	}
	g.render(c, http.StatusOK, "checkout.html", gin.H{"Title": "Checkout", "Summary": summary})
}

func (g *Gateway) checkout(c *gin.Context) {
	var form checkoutForm
	if err := bindForm(c, &form); err != nil {
		g.fail(c, err, "/checkout")
		return
	}

	orderID, err := g.svc.Checkout.PlaceOrder(c.Request.Context(), currentUser(c), form.Address, form.Phone)
	if err != nil {
		back := "/cart"
		if apperr.KindOf(err) == apperr.KindValidation {
			back = "/checkout"
		}
		g.fail(c, err, back)
		return
	}

	g.logger.Info("Checkout completed", zap.Uint("order_id", orderID))
	g.flash(c, "success", "Order placed! A confirmation email has been sent")
	g.redirect(c, "/orders")
}

func (g *Gateway) orders(c *gin.Context) {
	orders, err := g.svc.Checkout.ListOrders(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		g.fail(c, err, "/")
		return
	}
	g.render(c, http.StatusOK, "orders.html", gin.H{"Title": "My orders", "Orders": orders})
}

func (g *Gateway) orderDetail(c *gin.Context) {
	id, err := paramID(c, "order")
	if err != nil {
		g.fail(c, err, "/orders")
		return
	}
	detail, err := g.svc.Checkout.GetOrder(c.Request.Context(), currentUser(c).ID, id)
	if err != nil {
		g.fail(c, err, "/orders")
		return
	}
	g.render(c, http.StatusOK, "order_detail.html", gin.H{"Title": "Order", "Detail": detail})
}
