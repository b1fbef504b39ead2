package gateway

import (
	"fmt"
	"net/http"

	"github.com/example/shopfront/pkg/apperr"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const recentOrders = 5

func (g *Gateway) adminDashboard(c *gin.Context) {
	ctx := c.Request.Context()
	dashboard, err := g.svc.Admin.Dashboard(ctx)
	if err != nil {
		g.fail(c, err, "/")
		return
	}
	orders, err := g.svc.Admin.RecentOrders(ctx, recentOrders)
	if err != nil {
		g.fail(c, err, "/")
		return
	}
	g.render(c, http.StatusOK, "admin_dashboard.html", gin.H{
		"Title":        "Dashboard",
		"Dashboard":    dashboard,
		"RecentOrders": orders,
	})
}

func (g *Gateway) adminProducts(c *gin.Context) {
	ctx := c.Request.Context()
	products, err := g.svc.Admin.ListProducts(ctx)
	if err != nil {
		g.fail(c, err, "/admin")
		return
	}
	categories, err := g.svc.Admin.ListCategories(ctx)
	if err != nil {
		g.fail(c, err, "/admin")
		return
	}
	g.render(c, http.StatusOK, "admin_products.html", gin.H{
		"Title":      "Products",
		"Products":   products,
		"Categories": categories,
	})
}

func (g *Gateway) adminCreateProduct(c *gin.Context) {
	var form productForm
	if err := bindForm(c, &form); err != nil {
		g.fail(c, err, "/admin/products")
		return
	}
	in, err := form.input()
	if err != nil {
		g.fail(c, err, "/admin/products")
		return
	}
	up, closeUpload, err := upload(c)
	if err != nil {
		g.fail(c, err, "/admin/products")
		return
	}
	defer closeUpload()

	product, err := g.svc.Admin.CreateProduct(c.Request.Context(), in, up)
	if err != nil {
		g.fail(c, err, "/admin/products")
		return
	}
	g.logger.Info("Product created", zap.Uint("product_id", product.ID), zap.String("name", product.Name))
	g.flash(c, "success", "Product added")
	g.redirect(c, "/admin/products")
}

func (g *Gateway) adminEditProductPage(c *gin.Context) {
	ctx := c.Request.Context()
	id, err := paramID(c, "product")
	if err != nil {
		g.fail(c, err, "/admin/products")
		return
	}
	product, err := g.svc.Admin.GetProduct(ctx, id)
	if err != nil {
		g.fail(c, err, "/admin/products")
		return
	}
	categories, err := g.svc.Admin.ListCategories(ctx)
	if err != nil {
		g.fail(c, err, "/admin/products")
		return
	}
	g.render(c, http.StatusOK, "admin_product_edit.html", gin.H{
		"Title":      "Edit product",
		"Product":    product,
		"Categories": categories,
	})
}

func (g *Gateway) adminEditProduct(c *gin.Context) {
	id, err := paramID(c, "product")
	if err != nil {
		g.fail(c, err, "/admin/products")
		return
	}
	back := fmt.Sprintf("/admin/product/edit/%d", id)

	var form productForm
	if err := bindForm(c, &form); err != nil {
		g.fail(c, err, back)
		return
	}
	in, err := form.input()
	if err != nil {
		g.fail(c, err, back)
		return
	}
	up, closeUpload, err := upload(c)
	if err != nil {
		g.fail(c, err, back)
		return
	}
	defer closeUpload()

	if _, err := g.svc.Admin.UpdateProduct(c.Request.Context(), id, in, up); err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			g.fail(c, err, "/admin/products")
			return
		}
		g.fail(c, err, back)
		return
	}
	g.flash(c, "success", "Product updated")
	g.redirect(c, "/admin/products")
}

func (g *Gateway) adminDeleteProduct(c *gin.Context) {
	id, err := paramID(c, "product")
	if err != nil {
		g.fail(c, err, "/admin/products")
		return
	}
	if err := g.svc.Admin.DeleteProduct(c.Request.Context(), id); err != nil {
		if apperr.Is(err, apperr.CodeProductOrdered) {
			g.flash(c, "error", "Cannot delete product: it appears in existing orders")
			g.redirect(c, "/admin/products")
			return
		}
		g.fail(c, err, "/admin/products")
		return
	}
	g.logger.Info("Product deleted", zap.Uint("product_id", id))
	g.flash(c, "success", "Product deleted")
	g.redirect(c, "/admin/products")
}

func (g *Gateway) adminOrders(c *gin.Context) {
	status := c.Query("status")
	orders, err := g.svc.Admin.ListOrders(c.Request.Context(), status)
	if err != nil {
		g.fail(c, err, "/admin/orders")
		return
	}
	g.render(c, http.StatusOK, "admin_orders.html", gin.H{
		"Title":  "Orders",
		"Orders": orders,
		"Status": status,
	})
}

func (g *Gateway) adminOrderDetail(c *gin.Context) {
	id, err := paramID(c, "order")
	if err != nil {
		g.fail(c, err, "/admin/orders")
		return
	}
	view, err := g.svc.Admin.OrderDetail(c.Request.Context(), id)
	if err != nil {
		g.fail(c, err, "/admin/orders")
		return
	}
	g.render(c, http.StatusOK, "admin_order_detail.html", gin.H{"Title": "Order", "View": view})
}

func (g *Gateway) adminUpdateStatus(c *gin.Context) {
	var form statusForm
	if err := bindForm(c, &form); err != nil {
		g.failJSON(c, err)
		return
	}

	actor := currentUser(c).Username
	order, err := g.svc.Admin.UpdateStatus(c.Request.Context(), actor, form.OrderID, form.Status)
	if err != nil {
		g.failJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Order status updated",
		"status":  order.Status,
	})
}

func (g *Gateway) adminCategories(c *gin.Context) {
	categories, err := g.svc.Admin.ListCategories(c.Request.Context())
	if err != nil {
		g.fail(c, err, "/admin")
		return
	}
	g.render(c, http.StatusOK, "admin_categories.html", gin.H{"Title": "Categories", "Categories": categories})
}

func (g *Gateway) adminAddCategory(c *gin.Context) {
	var form categoryForm
	if err := bindForm(c, &form); err != nil {
		g.failJSON(c, err)
		return
	}
	category, err := g.svc.Admin.CreateCategory(c.Request.Context(), form.Name, form.Description)
	if err != nil {
		g.failJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Category added", "id": category.ID})
}

func (g *Gateway) adminEditCategory(c *gin.Context) {
	id, err := paramID(c, "category")
	if err != nil {
		g.failJSON(c, err)
		return
	}
	var form categoryForm
	if err := bindForm(c, &form); err != nil {
		g.failJSON(c, err)
		return
	}
	if err := g.svc.Admin.UpdateCategory(c.Request.Context(), id, form.Name, form.Description); err != nil {
		g.failJSON(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Category updated"})
}

func (g *Gateway) adminDeleteCategory(c *gin.Context) {
	id, err := paramID(c, "category")
	if err != nil {
		g.fail(c, err, "/admin/categories")
		return
	}
	if err := g.svc.Admin.DeleteCategory(c.Request.Context(), id); err != nil {
		if apperr.Is(err, apperr.CodeCategoryInUse) {
			g.flash(c, "error", "Cannot delete category: products are using it")
			g.redirect(c, "/admin/categories")
			return
		}
		g.fail(c, err, "/admin/categories")
		return
	}
	g.flash(c, "success", "Category deleted")
	g.redirect(c, "/admin/categories")
}

func (g *Gateway) adminStats(c *gin.Context) {
	stats, err := g.svc.Admin.Stats(c.Request.Context())
	if err != nil {
		g.fail(c, err, "/admin")
		return
	}
	g.render(c, http.StatusOK, "admin_stats.html", gin.H{"Title": "Sales", "Stats": stats})
}
