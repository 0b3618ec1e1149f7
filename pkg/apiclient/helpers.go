package apiclient

import (
	"fmt"
	"net/http"
)

// Typed wrappers around Client.do. Each resource file is a thin layer of
// paths on top of these.

func decodeInto[T any](c *Client, method, path string, body any) (*T, error) {
	out := new(T)
	if err := c.do(method, path, body, out); err != nil {
		return nil, err
	}
	return out, nil
}

func getResource[T any](c *Client, path string) (*T, error) {
	return decodeInto[T](c, http.MethodGet, path, nil)
}

// listResources never returns a nil slice on success, so an empty listing
// prints as [] rather than null.
func listResources[T any](c *Client, path string) ([]T, error) {
	items := []T{}
	if err := c.get(path, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func createResource[T any](c *Client, path string, body any) (*T, error) {
	return decodeInto[T](c, http.MethodPost, path, body)
}

func updateResource[T any](c *Client, path string, body any) (*T, error) {
	return decodeInto[T](c, http.MethodPut, path, body)
}

func deleteResource(c *Client, path string) error {
	return c.delete(path, nil)
}

// resourcePath formats a path template. Callers escape the arguments.
func resourcePath(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}
