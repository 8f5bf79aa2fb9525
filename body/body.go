// Package body defines the contract this layer consumes from an external
// rigid-body kinematics/dynamics engine: configuration-manifold operations on
// the model side, and per-node kinematic/dynamic quantities on the data side.
// All frame-level quantities are reported in the LOCAL convention; conversion
// to other conventions is the contact layer's responsibility.
package body

import (
	"gonum.org/v1/gonum/mat"

	"github.com/mechsys/optctrl/spatial"
)

// FrameID indexes a frame in the kinematic model.
type FrameID int

// Model is the immutable description of an articulated system. It is
// constructed once per robot and shared read-only across trajectory nodes.
type Model interface {
	// NQ returns the configuration dimension.
	NQ() int
	// NV returns the tangent (generalized-velocity) dimension.
	NV() int

	// Neutral returns the reference configuration.
	Neutral() *mat.VecDense
	// Random returns a valid random configuration.
	Random() *mat.VecDense

	// Integrate returns q [+] dq on the configuration manifold.
	Integrate(q, dq mat.Vector) *mat.VecDense
	// Difference returns dq such that q0 [+] dq = q1.
	Difference(q0, q1 mat.Vector) *mat.VecDense
	// DIntegrate returns the Jacobians of Integrate with respect to q
	// (first) and dq (second), each nv x nv.
	DIntegrate(q, dq mat.Vector) (*mat.Dense, *mat.Dense)

	// FrameName resolves a frame id to its name, for error messages.
	FrameName(id FrameID) string
	// FrameByName resolves a frame name to its id.
	FrameByName(name string) (FrameID, bool)
	// FramePlacementOffset returns the fixed placement from the frame's
	// supporting joint to the frame itself.
	FramePlacementOffset(id FrameID) spatial.Placement

	// NewData allocates a per-node data workspace for this model.
	NewData() Data
}

// Data is the per-node kinematics/dynamics cache. One trajectory node owns
// exactly one Data; nothing here is safe for concurrent use.
type Data interface {
	// ComputeAllTerms runs forward kinematics at (q, v) with zero
	// acceleration and fills every quantity the accessors below expose:
	// frame placements, LOCAL spatial velocities, LOCAL drift
	// accelerations, LOCAL frame Jacobians and their partials, the joint
	// mass matrix (with armature), the nonlinear-effects vector, and the
	// gravity torque.
	ComputeAllTerms(q, v mat.Vector)

	// FramePlacement returns the world placement of the frame.
	FramePlacement(id FrameID) spatial.Placement
	// FrameVelocity returns the frame's LOCAL spatial velocity.
	FrameVelocity(id FrameID) spatial.Motion
	// FrameAcceleration returns the frame's LOCAL drift spatial
	// acceleration (forward kinematics with zero joint acceleration).
	FrameAcceleration(id FrameID) spatial.Motion
	// FrameJacobian returns the 6 x nv LOCAL frame Jacobian.
	FrameJacobian(id FrameID) *mat.Dense
	// FrameVelocityDerivatives returns the partials of the frame's LOCAL
	// spatial velocity with respect to configuration and velocity, each
	// 6 x nv.
	FrameVelocityDerivatives(id FrameID) (vdq, vdv *mat.Dense)
	// FrameAccelerationDerivatives returns the partials of the frame's
	// LOCAL velocity and drift acceleration with respect to configuration
	// and velocity, each 6 x nv.
	FrameAccelerationDerivatives(id FrameID) (vdq, adq, adv *mat.Dense)

	// Mass returns the nv x nv joint-space mass matrix.
	Mass() *mat.Dense
	// Nonlinear returns the nv nonlinear-effects vector (Coriolis,
	// centrifugal, gravity).
	Nonlinear() *mat.VecDense
	// Gravity returns the nv generalized gravity torque.
	Gravity() *mat.VecDense
	// GravityDerivative returns the nv x nv partial of the gravity torque
	// with respect to configuration.
	GravityDerivative() *mat.Dense

	// RNEADerivatives returns the partials of the inverse dynamics
	// torque with respect to configuration and velocity at (q, v, a) under
	// the external joint forces fext (indexed by frame), each nv x nv.
	RNEADerivatives(q, v, a mat.Vector, fext map[FrameID]spatial.Force) (dtauDq, dtauDv *mat.Dense)
}
