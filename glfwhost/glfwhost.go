// Package glfwhost owns GLFW window/context creation and input
// sampling. Grounded verbatim on glfwcontext/context.go's window-hint
// sequence ("This is the ONLY package in the project that should
// import glfw" — the same discipline glhost follows for gl calls) and
// renderer.go's Run() mouse-sampling logic (framebuffer-vs-window
// scaling, click latch).
package glfwhost

import (
	"fmt"
	"log"
	"runtime"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
)

func init() {
	// GLFW calls that must run on the main OS thread.
	runtime.LockOSThread()
}

// Window owns a GLFW window and its current OpenGL context.
type Window struct {
	win *glfw.Window

	lastMouseClickX, lastMouseClickY float64
	mouseWasDown                     bool
}

// Open creates a resizable GLFW window targeting an OpenGL 4.1 core
// profile context and makes it current, mirroring
// glfwcontext.NewContext's hint sequence exactly.
func Open(width, height int, title string) (*Window, error) {
	return open(width, height, title, true)
}

// OpenHidden creates the same context as Open but with the window
// surface hidden, mirroring cmd/main.go's runShadertoy ("the window
// will be hidden" when *options.Record is set) — recording still
// needs a real current GL context, just no visible surface.
func OpenHidden(width, height int, title string) (*Window, error) {
	return open(width, height, title, false)
}

func open(width, height int, title string, visible bool) (*Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("glfwhost: %w", err)
	}

	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	visibleHint := glfw.False
	if visible {
		visibleHint = glfw.True
	}
	glfw.WindowHint(glfw.Visible, visibleHint)

	win, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("glfwhost: create window: %w", err)
	}

	win.MakeContextCurrent()

	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("glfwhost: gl.Init: %w", err)
	}
	log.Printf("glfwhost: OpenGL version %s", gl.GoStr(gl.GetString(gl.VERSION)))

	return &Window{win: win}, nil
}

// Shutdown terminates GLFW. Safe to call once, after the window is no
// longer needed.
func (w *Window) Shutdown() { glfw.Terminate() }

// ShouldClose reports whether the user has requested to close the window.
func (w *Window) ShouldClose() bool { return w.win.ShouldClose() }

// SwapBuffersAndPollEvents presents the frame and services the event queue.
func (w *Window) SwapBuffersAndPollEvents() {
	w.win.SwapBuffers()
	glfw.PollEvents()
}

// FramebufferSize returns the current drawable area in pixels.
func (w *Window) FramebufferSize() (int, int) { return w.win.GetFramebufferSize() }

// Time returns seconds elapsed since GLFW initialization.
func (w *Window) Time() float64 { return glfw.GetTime() }

// SampleInput reads the current mouse position and the host's
// Shadertoy-style iMouse convention: (x,y) is the live cursor in
// framebuffer pixels (bottom-left origin); (clickX,clickY) is the
// position of the most recent press, negated while the button is up,
// per the teacher's exact Run() loop logic.
func (w *Window) SampleInput() (mouseX, mouseY, clickX, clickY float32, isDown bool) {
	fbWidth, fbHeight := w.win.GetFramebufferSize()
	winWidth, winHeight := w.win.GetSize()
	scaleX, scaleY := 1.0, 1.0
	if winWidth > 0 && winHeight > 0 {
		scaleX = float64(fbWidth) / float64(winWidth)
		scaleY = float64(fbHeight) / float64(winHeight)
	}

	cursorX, cursorY := w.win.GetCursorPos()
	pixelX := cursorX * scaleX
	pixelY := cursorY * scaleY
	mouseX = float32(pixelX)
	mouseY = float32(fbHeight) - float32(pixelY)

	const mouseLeft = glfw.MouseButton1
	isDown = w.win.GetMouseButton(mouseLeft) == glfw.Press
	if isDown && !w.mouseWasDown {
		w.lastMouseClickX, w.lastMouseClickY = pixelX, pixelY
	}
	w.mouseWasDown = isDown

	clickX = float32(w.lastMouseClickX)
	clickY = float32(fbHeight) - float32(w.lastMouseClickY)
	if !isDown {
		clickX, clickY = -clickX, -clickY
	}
	return mouseX, mouseY, clickX, clickY, isDown
}
